//go:build !linux

package daemon

import (
	"os"

	"github.com/NunoDasNeves/mini-https-server/api"
)

func lock(*os.File) error { return nil }

func chown(_ *os.File, id identity) error {
	if id.uid < 0 && id.gid < 0 {
		return nil
	}
	return api.ErrNotSupported
}

func dropPrivileges(id identity) error {
	if id.uid < 0 && id.gid < 0 {
		return nil
	}
	return api.ErrNotSupported
}
