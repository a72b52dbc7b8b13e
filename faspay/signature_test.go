package faspay

import (
	"strings"
	"testing"
)

var testConfig = Config{
	MerchantID: "36619",
	Password:   "p@ssw0rd",
	UserID:     "bot36619",
	PartnerID:  "36619",
	ChannelID:  "77001",
}

func TestLegacySignerCallbackFixture(t *testing.T) {
	s := NewLegacySigner(testConfig)

	// SHA1(MD5("36619p@ssw0rdOASIS-STARTER-1700000000000-TEST2"))
	got := s.SignCallback("OASIS-STARTER-1700000000000-TEST", "2")
	want := "86fb66db8a7f4feb2f20d21df79d26f6fad7a98a"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestLegacySignerRequestFixture(t *testing.T) {
	s := NewLegacySigner(testConfig)

	// request signing has no status code in the preimage
	got := s.SignRequest("OASIS-STARTER-1700000000000-TEST")
	want := "9e8c36be2777ba95b2a378d54b013d051976bf04"
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
	if got == s.SignCallback("OASIS-STARTER-1700000000000-TEST", "2") {
		t.Error("request and callback signatures must differ")
	}
}

func TestLegacySignerVerify(t *testing.T) {
	s := NewLegacySigner(testConfig)

	sig := s.SignCallback("OASIS-PRO-1700000000000-ABC123", "2")
	if !s.VerifyCallback("OASIS-PRO-1700000000000-ABC123", "2", sig) {
		t.Error("expected valid signature to verify")
	}
	if !s.VerifyCallback("OASIS-PRO-1700000000000-ABC123", "2", strings.ToUpper(sig)) {
		t.Error("verification should be case-insensitive")
	}
	if s.VerifyCallback("OASIS-PRO-1700000000000-ABC123", "3", sig) {
		t.Error("signature for a different status code must not verify")
	}
}

func TestLegacySignerVerifyRejectsMutations(t *testing.T) {
	s := NewLegacySigner(testConfig)
	sig := s.SignCallback("OASIS-STARTER-1700000000000-TEST", "2")

	for i := 0; i < len(sig); i++ {
		mutated := []byte(sig)
		if mutated[i] == 'f' {
			mutated[i] = '0'
		} else {
			mutated[i] = 'f'
		}
		if s.VerifyCallback("OASIS-STARTER-1700000000000-TEST", "2", string(mutated)) {
			t.Errorf("mutated signature at position %d should not verify", i)
		}
	}
}

func TestSnapSignerFixtures(t *testing.T) {
	s := NewSnapSigner(testConfig)

	body := []byte(`{"partnerReferenceNo":"OASIS-STARTER-1700000000000-TEST","amount":{"value":"99000.00","currency":"IDR"}}`)
	ctx := SigningContext{
		Method:    "POST",
		Path:      "/v1.0/qr/qr-mpm-generate",
		Timestamp: "2023-11-14T22:13:20Z",
		Body:      body,
	}

	// request signatures use HMAC-SHA512
	if got, want := s.SignRequest(ctx), "VEa2SreyOQi3mizBXzW5Lb0N5N0/uAva2WBUWqhEjILDTqJN/DgcN5NTf3VTBvTGKEZ3I58Mm90g9KOVYpdG0A=="; got != want {
		t.Errorf("request signature mismatch:\n want %s\n got  %s", want, got)
	}

	// callback signatures use HMAC-SHA256
	want256 := "P36yrrcE6h3qALHrvQZ4wKGGVDp41LB9XrFEPnEhNZQ="
	if !s.VerifyCallback(ctx, want256) {
		t.Error("expected SHA256 callback signature to verify")
	}
	if s.VerifyCallback(ctx, s.SignRequest(ctx)) {
		t.Error("request (SHA512) signature must not verify as a callback signature")
	}
}

func TestSnapSignerAccessTokenSegment(t *testing.T) {
	s := NewSnapSigner(testConfig)

	body := []byte(`{"partnerReferenceNo":"OASIS-STARTER-1700000000000-TEST","amount":{"value":"99000.00","currency":"IDR"}}`)
	ctx := SigningContext{
		Method:      "POST",
		Path:        "/v1.0/qr/qr-mpm-generate",
		AccessToken: "TOKEN123",
		Timestamp:   "2023-11-14T22:13:20Z",
		Body:        body,
	}

	if !s.VerifyCallback(ctx, "NgHLCzjzkFn2EjZT8m8jZnMWBIxpBtCOvYNFDpSX+RI=") {
		t.Error("expected tokened callback signature to verify")
	}

	noToken := ctx
	noToken.AccessToken = ""
	if s.VerifyCallback(noToken, "NgHLCzjzkFn2EjZT8m8jZnMWBIxpBtCOvYNFDpSX+RI=") {
		t.Error("token segment must change the canonical string")
	}
}

func TestSnapSignerUsesExactBodyBytes(t *testing.T) {
	s := NewSnapSigner(testConfig)

	base := SigningContext{
		Method:    "POST",
		Path:      "/v1.0/qr/qr-mpm-generate",
		Timestamp: "2023-11-14T22:13:20Z",
		Body:      []byte(`{"a":1,"b":2}`),
	}
	sig := s.SignRequest(base)

	// trailing whitespace, reordered keys: same JSON value, different bytes
	for _, variant := range []string{`{"a":1,"b":2} `, `{"b":2,"a":1}`, `{ "a":1,"b":2}`} {
		ctx := base
		ctx.Body = []byte(variant)
		if s.SignRequest(ctx) == sig {
			t.Errorf("body %q must not hash to the same signature", variant)
		}
	}
}

func TestStringToSignFormat(t *testing.T) {
	ctx := SigningContext{
		Method:    "POST",
		Path:      "/v1.0/qr/qr-mpm-generate",
		Timestamp: "2023-11-14T22:13:20Z",
		Body:      []byte(`{}`),
	}
	sts := ctx.StringToSign()
	if strings.Count(sts, ":") < 3 {
		t.Errorf("unexpected canonical string: %s", sts)
	}
	if !strings.HasPrefix(sts, "POST:/v1.0/qr/qr-mpm-generate:") {
		t.Errorf("canonical string must start with method and path: %s", sts)
	}
	if !strings.HasSuffix(sts, ":2023-11-14T22:13:20Z") {
		t.Errorf("canonical string must end with the timestamp: %s", sts)
	}
}
