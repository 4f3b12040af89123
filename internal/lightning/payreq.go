package lightning

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// ExplorerTxURL links a funding transaction on the public block explorer.
func ExplorerTxURL(txid string) string {
	return "https://blockstream.info/tx/" + txid
}

// PaymentURI renders the wallet-openable URI for a payment request.
func PaymentURI(paymentRequest string) string {
	return "lightning:" + paymentRequest
}

// QRCodePNG renders a payment URI as a base64-encoded PNG suitable for
// embedding in an <img> tag.
func QRCodePNG(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
