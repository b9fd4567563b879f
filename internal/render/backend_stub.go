//go:build !govips || !cgo

package render

import "errors"

func newAcceleratedBackend() (backend, error) {
	return nil, errors.New("binary built without the govips tag")
}
