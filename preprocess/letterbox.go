// Package preprocess prepares video frames for the detector input tensor.
package preprocess

// Letterbox holds the geometry of scaling a source image into a fixed size
// tensor whilst keeping its aspect ratio, the remaining space is padded
// evenly on both sides
type Letterbox struct {
	srcWidth   int
	srcHeight  int
	destWidth  int
	destHeight int
	xPad       int
	yPad       int
	scale      float32
	resizeW    int
	resizeH    int
}

// NewLetterbox calculates the letterbox geometry for the given source and
// destination sizes
func NewLetterbox(srcWidth, srcHeight, destWidth, destHeight int) Letterbox {

	l := Letterbox{
		srcWidth:   srcWidth,
		srcHeight:  srcHeight,
		destWidth:  destWidth,
		destHeight: destHeight,
		resizeW:    destWidth,
		resizeH:    destHeight,
	}

	scaleW := float32(destWidth) / float32(srcWidth)
	scaleH := float32(destHeight) / float32(srcHeight)
	l.scale = scaleH

	if scaleW < scaleH {
		l.scale = scaleW
		l.resizeH = int(float32(srcHeight) * l.scale)
	} else {
		l.resizeW = int(float32(srcWidth) * l.scale)
	}

	l.yPad = (destHeight - l.resizeH) / 2
	l.xPad = (destWidth - l.resizeW) / 2

	return l
}

// ScaleFactor returns the scale factor applied to the source image
func (l Letterbox) ScaleFactor() float32 {
	return l.scale
}

// XPad returns the padding added to the left of the scaled image
func (l Letterbox) XPad() int {
	return l.xPad
}

// YPad returns the padding added above the scaled image
func (l Letterbox) YPad() int {
	return l.yPad
}

// SrcWidth returns the width of the source image
func (l Letterbox) SrcWidth() int {
	return l.srcWidth
}

// SrcHeight returns the height of the source image
func (l Letterbox) SrcHeight() int {
	return l.srcHeight
}

// ResizedSize returns the dimensions of the scaled image before padding
func (l Letterbox) ResizedSize() (int, int) {
	return l.resizeW, l.resizeH
}

// Matches reports whether the geometry was calculated for a source image
// of the given size
func (l Letterbox) Matches(srcWidth, srcHeight int) bool {
	return l.srcWidth == srcWidth && l.srcHeight == srcHeight
}
