package ufs1

import "strings"

// modeTypeTable maps IFTODT(mode) to a single type character. Only
// indices 0,1,2,4,6,8,10,12,14 (the DT_* constants) are ever looked
// up; the rest pad the table to a fixed size.
const modeTypeTable = "0fc3d5b7-9lBsDwF"

// ModeString renders a 10-character POSIX mode string: one type
// character followed by owner/group/other permission triples, with
// set-uid, set-gid, and sticky bit overrides.
func ModeString(mode uint16) string {
	suid := mode&04000 != 0
	sgid := mode&02000 != 0
	svtx := mode&01000 != 0

	var b strings.Builder
	b.WriteByte(modeTypeTable[IFTODT(mode)])

	b.WriteByte(triChar(mode&0400 != 0, 'r'))
	b.WriteByte(triChar(mode&0200 != 0, 'w'))
	b.WriteByte(execChar(mode&0100 != 0, suid, 's', 'S'))

	b.WriteByte(triChar(mode&0040 != 0, 'r'))
	b.WriteByte(triChar(mode&0020 != 0, 'w'))
	b.WriteByte(execChar(mode&0010 != 0, sgid, 's', 'S'))

	b.WriteByte(triChar(mode&0004 != 0, 'r'))
	b.WriteByte(triChar(mode&0002 != 0, 'w'))
	b.WriteByte(execChar(mode&0001 != 0, svtx, 't', 'T'))

	return b.String()
}

func triChar(set bool, ch byte) byte {
	if set {
		return ch
	}
	return '-'
}

func execChar(exec, special bool, setChar, specialOnlyChar byte) byte {
	if exec {
		if special {
			return setChar
		}
		return 'x'
	}
	if special {
		return specialOnlyChar
	}
	return '-'
}

// Major extracts the major device number from a packed rdev value.
func Major(rdev uint32) uint32 {
	return (rdev >> 8) & 0xff
}

// Minor extracts the minor device number from a packed rdev value.
func Minor(rdev uint32) uint32 {
	return (rdev & 0xff) | ((rdev >> 8) & 0xffff00)
}

// Makedev packs a major/minor pair into the on-disk rdev encoding.
func Makedev(major, minor uint32) uint32 {
	return (major << 8) | (minor & 0xff) | (minor&0xffff00)<<8
}
