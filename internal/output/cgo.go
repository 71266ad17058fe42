//go:build cgo

package output

func cgoEnabled() bool {
	return true
}
