package camera

import "fmt"

type CamError int

const (
	ErrCamOK         CamError = 0
	ErrCamInitFailed CamError = -1
	ErrCamOpenFailed CamError = -2
	ErrCamNotFound   CamError = -3
	ErrCamNoFormat   CamError = -4
	ErrCamTimeout    CamError = -5
	ErrCamClosed     CamError = -6
)

func (c CamError) Error() string {
	switch c {
	case ErrCamInitFailed:
		return "init failed"
	case ErrCamOpenFailed:
		return "open failed"
	case ErrCamNotFound:
		return "not found"
	case ErrCamNoFormat:
		return "no supported pixel format"
	case ErrCamTimeout:
		return "timed out waiting for frame"
	case ErrCamClosed:
		return "camera closed"
	default:
		return fmt.Sprintf("error %d", int(c))
	}
}
