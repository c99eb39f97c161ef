package ai

import (
	"fmt"

	"alertcam/internal/model"

	"gocv.io/x/gocv"
)

// JPEGEncoder compresses frames for alert payloads.
type JPEGEncoder struct {
	Quality int // 1-100, 0 keeps the OpenCV default
}

func (e JPEGEncoder) Encode(mat gocv.Mat) (model.EncodedImage, error) {
	if mat.Empty() {
		return model.EncodedImage{}, fmt.Errorf("frame is empty")
	}

	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if e.Quality > 0 {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{int(gocv.IMWriteJpegQuality), e.Quality})
	} else {
		buf, err = gocv.IMEncode(gocv.JPEGFileExt, mat)
	}
	if err != nil {
		return model.EncodedImage{}, err
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return model.EncodedImage{Data: data, Format: "jpg"}, nil
}
