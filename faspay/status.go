package faspay

// Payment status codes reported by the Legacy Debit callback.
const (
	StatusUnprocessed = "0"
	StatusInProcess   = "1"
	StatusSuccess     = "2"
	StatusFailed      = "3"
	StatusReversal    = "4"
	StatusNoBills     = "5"
	StatusExpired     = "7"
	StatusCancelled   = "8"
	StatusUnknown     = "9"
)

// StatusDescription maps a code to Faspay's own wording, used for logs and
// audit entries.
func StatusDescription(code string) string {
	switch code {
	case StatusUnprocessed:
		return "Belum Diproses"
	case StatusInProcess:
		return "Dalam Proses"
	case StatusSuccess:
		return "Pembayaran Sukses"
	case StatusFailed:
		return "Pembayaran Gagal"
	case StatusReversal:
		return "Pembayaran Reversal"
	case StatusNoBills:
		return "Tidak Ada Tagihan"
	case StatusExpired:
		return "Pembayaran Expired"
	case StatusCancelled:
		return "Pembayaran Dibatalkan"
	default:
		return "Unknown"
	}
}
