//go:build !linux && !darwin

package camera

import "fmt"

func platformDriver(opts Options) (Driver, error) {
	return nil, fmt.Errorf("%w: no camera driver for this platform, use the synthetic driver", ErrCamInitFailed)
}
