package export

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
	"github.com/jung-kurt/gofpdf"
)

// pxToPt maps canvas pixels to PDF points at 96 dpi.
const pxToPt = 72.0 / 96.0

// WritePDF writes a single-page PDF sized to img with img drawn full page.
func WritePDF(w io.Writer, img image.Image, title string) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}

	b := img.Bounds()
	wd, ht := float64(b.Dx())*pxToPt, float64(b.Dy())*pxToPt

	orientation := "P"
	if wd > ht {
		orientation = "L"
	}

	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: orientation,
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: wd, Ht: ht},
	})
	p.SetMargins(0, 0, 0)
	p.SetAutoPageBreak(false, 0)
	if title != "" {
		p.SetTitle(title, true)
	}
	p.AddPage()

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	p.RegisterImageOptionsReader("board", opts, &buf)
	p.ImageOptions("board", 0, 0, wd, ht, false, opts, 0, "")

	if err := p.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}
