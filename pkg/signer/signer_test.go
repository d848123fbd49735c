package signer

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strings"
	"testing"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   Params
		want string
	}{
		{"empty", Params{}, ""},
		{"sorted keys", Params{"b": "2", "a": "1", "c": "3"}, "a=1&b=2&c=3"},
		{"space is %20", Params{"vnp_OrderInfo": "Chuyen tien den ACB"}, "vnp_OrderInfo=Chuyen%20tien%20den%20ACB"},
		{"reserved chars", Params{"u": "https://x.vn/a?b=c&d"}, "u=https%3A%2F%2Fx.vn%2Fa%3Fb%3Dc%26d"},
		{"unreserved kept", Params{"k": "A-z_0.9!~*'()"}, "k=A-z_0.9!~*'()"},
		{"utf8", Params{"k": "Gửi"}, "k=G%E1%BB%ADi"},
		{"plus escaped", Params{"k": "1+1"}, "k=1%2B1"},
		{"byte order", Params{"vnp_a": "1", "vnp_B": "2"}, "vnp_B=2&vnp_a=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonicalize(tt.in); got != tt.want {
				t.Errorf("Canonicalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSignMatchesHMACSHA512(t *testing.T) {
	s := New("secret")
	p := Params{"vnp_TxnRef": "P1", "vnp_Amount": "50000000"}

	mac := hmac.New(sha512.New, []byte("secret"))
	mac.Write([]byte("vnp_Amount=50000000&vnp_TxnRef=P1"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := s.Sign(p)
	if got != want {
		t.Fatalf("Sign() = %s, want %s", got, want)
	}
	if len(got) != 128 || strings.ToLower(got) != got {
		t.Fatalf("signature should be 128 lowercase hex chars, got %q", got)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	s := New("secret", "vnp_SecureHash", "vnp_SecureHashType")
	p := Params{
		"vnp_TxnRef":        "P1",
		"vnp_ResponseCode":  "00",
		"vnp_TransactionNo": "14000001",
		"vnp_OrderInfo":     "Chuyen tien den Unknown",
	}
	sig := s.Sign(p)

	if !s.Verify(p, sig) {
		t.Fatal("Verify(Sign(p)) = false")
	}
	if !s.Verify(p, strings.ToUpper(sig)) {
		t.Fatal("Verify should accept an uppercase hex signature")
	}

	// signature fields are not part of the signed payload
	withHash := p.Clone()
	withHash["vnp_SecureHash"] = sig
	withHash["vnp_SecureHashType"] = "HmacSHA512"
	if !s.Verify(withHash, sig) {
		t.Fatal("Verify should ignore signature fields")
	}
}

func TestVerifyRejectsAnyMutation(t *testing.T) {
	s := New("secret", "vnp_SecureHash")
	p := Params{"vnp_TxnRef": "P1", "vnp_ResponseCode": "00", "vnp_Amount": "50000000"}
	sig := s.Sign(p)

	for k := range p {
		changed := p.Clone()
		changed[k] = changed[k] + "x"
		if s.Verify(changed, sig) {
			t.Errorf("mutating value of %s still verifies", k)
		}

		renamed := p.Clone()
		delete(renamed, k)
		renamed[k+"_"] = p[k]
		if s.Verify(renamed, sig) {
			t.Errorf("renaming key %s still verifies", k)
		}
	}

	extra := p.Clone()
	extra["vnp_BankCode"] = "NCB"
	if s.Verify(extra, sig) {
		t.Error("adding a key still verifies")
	}

	if New("other", "vnp_SecureHash").Verify(p, sig) {
		t.Error("different secret still verifies")
	}
}

func TestVerifyMalformed(t *testing.T) {
	s := New("secret")
	p := Params{"a": "1"}

	for _, claimed := range []string{"", "zz", "abc", strings.Repeat("0", 128)} {
		if s.Verify(p, claimed) {
			t.Errorf("Verify(%q) = true", claimed)
		}
	}
	if s.Verify(nil, "") {
		t.Error("Verify(nil, \"\") = true")
	}
}

func TestSetInt(t *testing.T) {
	p := Params{}
	p.SetInt("vnp_Amount", 50000000)
	if p["vnp_Amount"] != "50000000" {
		t.Fatalf("SetInt stored %q", p["vnp_Amount"])
	}
}
