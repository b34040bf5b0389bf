package classifier

import (
	"image"

	"golang.org/x/image/draw"
)

// imageToTensor scales the image to the model input dimensions and flattens
// it into a normalized NHWC float32 tensor with RGB channels in [0,1].
func imageToTensor(img image.Image, width, height int) []float32 {
	scaled := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), draw.Over, nil)

	tensor := make([]float32, width*height*3)
	idx := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := scaled.PixOffset(x, y)
			tensor[idx] = float32(scaled.Pix[offset]) / 255.0
			tensor[idx+1] = float32(scaled.Pix[offset+1]) / 255.0
			tensor[idx+2] = float32(scaled.Pix[offset+2]) / 255.0
			idx += 3
		}
	}
	return tensor
}
