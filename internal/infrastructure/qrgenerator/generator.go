package qrgenerator

import (
	"encoding/json"
	"fmt"

	qr "github.com/skip2/go-qrcode"

	"github.com/Xausdorf/clout-ledger/internal/domain/share"
)

const DefaultSize = 256

// Generator renders share data as a PNG QR code.
type Generator struct {
	size  int
	level qr.RecoveryLevel
}

func NewGenerator(size int) *Generator {
	if size <= 0 {
		size = DefaultSize
	}
	return &Generator{size: size, level: qr.Medium}
}

func (g *Generator) Generate(data share.Data) ([]byte, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal share data: %w", err)
	}
	png, err := qr.Encode(string(content), g.level, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

var _ share.Generator = (*Generator)(nil)
