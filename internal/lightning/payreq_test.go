package lightning

import (
	"encoding/base64"
	"testing"
)

func TestExplorerTxURL(t *testing.T) {
	got := ExplorerTxURL("abc123")
	if got != "https://blockstream.info/tx/abc123" {
		t.Errorf("ExplorerTxURL = %q", got)
	}
}

func TestPaymentURI(t *testing.T) {
	got := PaymentURI("lnbc1pexample")
	if got != "lightning:lnbc1pexample" {
		t.Errorf("PaymentURI = %q", got)
	}
}

func TestQRCodePNG(t *testing.T) {
	b64, err := QRCodePNG("lightning:lnbc1pexample")
	if err != nil {
		t.Fatal(err)
	}
	png, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("output is not valid base64: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Error("decoded output is not a PNG")
	}
}
