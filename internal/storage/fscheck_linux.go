//go:build linux

package storage

import (
	"fmt"
	"syscall"
)

// statfs(2) f_type magic numbers, from linux/magic.h.
var linuxMounts = map[int64]string{
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x517B:     "smbfs",
	0xFE534D42: "smb2",
	0x01021997: "9p",
	0xEF53:     "ext4",
	0x58465342: "xfs",
	0x9123683E: "btrfs",
	0x01021994: "tmpfs",
	0x794C7630: "overlay",
}

func mountType(path string) (string, error) {
	var st syscall.Statfs_t
	if err := syscall.Statfs(path, &st); err != nil {
		return "", fmt.Errorf("statfs: %w", err)
	}
	magic := int64(uint32(st.Type))
	if name, ok := linuxMounts[magic]; ok {
		return name, nil
	}
	return fmt.Sprintf("0x%x", magic), nil
}
