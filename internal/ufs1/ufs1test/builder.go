// Package ufs1test builds small, synthetic, in-memory UFS1 images for
// exercising the ufs1 package without a real disk image fixture.
package ufs1test

import (
	"encoding/binary"
)

// Image is a growable byte buffer standing in for a block device.
type Image struct {
	data []byte
}

// NewImage returns an all-zero image of at least size bytes.
func NewImage(size int) *Image {
	return &Image{data: make([]byte, size)}
}

// Bytes returns the image's backing buffer.
func (img *Image) Bytes() []byte { return img.data }

// WriteAt copies b into the image at pos, growing the image if
// necessary.
func (img *Image) WriteAt(pos int64, b []byte) {
	end := pos + int64(len(b))
	if end > int64(len(img.data)) {
		grown := make([]byte, end)
		copy(grown, img.data)
		img.data = grown
	}
	copy(img.data[pos:end], b)
}

// SuperBlockParams are the knobs a test cares about; derived fields
// (bsize, fmask, inopb, ...) are computed to stay internally
// consistent so only deliberate corruption needs explicit overrides.
type SuperBlockParams struct {
	Sblkno, Cblkno, Iblkno, Dblkno int32
	Cgoffset, Cgmask              int32
	Ncg                           uint32
	Bshift, Fshift                int32
	Fpg                           int32
	Ipg                           uint32
	Cgsize                        int32
	Magic                         int32 // 0 to simulate a missing/invalid magic
}

// DefaultSuperBlockParams returns a minimal, valid single-CG geometry
// with block size == fragment size (fragshift 0), roomy enough to
// place a handful of direct and indirect data blocks beyond the
// metadata regions.
func DefaultSuperBlockParams() SuperBlockParams {
	return SuperBlockParams{
		Sblkno: 0, Cblkno: 1, Iblkno: 3, Dblkno: 4,
		Cgoffset: 0, Cgmask: 0,
		Ncg:    1,
		Bshift: 12, Fshift: 12,
		Fpg: 200,
		Ipg: 4,
		Cgsize: 1 << 12,
		Magic:  0x00011954,
	}
}

// Byte offsets of the rawSuperBlock fields this builder sets, within
// the 1376-byte (0x560) wire image.
const (
	offSblkno     = 8
	offCblkno     = 12
	offIblkno     = 16
	offDblkno     = 20
	offCgoffset   = 24
	offCgmask     = 28
	offNcg        = 44
	offBsize      = 48
	offFsize      = 52
	offFrag       = 56
	offBmask      = 72
	offFmask      = 76
	offBshift     = 80
	offFshift     = 84
	offFragshift  = 96
	offFsbtodb    = 100
	offInopb      = 120
	offCgsize     = 160
	offIpg        = 184
	offFpg        = 188
	offMaxembedded = 1320
	offInodefmt   = 1324
	offMagic      = 1372
)

// EncodeSuperBlock renders p as a wire-format super block image.
func EncodeSuperBlock(p SuperBlockParams) []byte {
	buf := make([]byte, 1376) // 0x560, fixed wire size of rawSuperBlock

	bsize := int32(1) << uint(p.Bshift)
	fsize := int32(1) << uint(p.Fshift)
	fragshift := p.Bshift - p.Fshift

	put32 := func(off int, v int32) { binary.LittleEndian.PutUint32(buf[off:], uint32(v)) }
	putU32 := func(off int, v uint32) { binary.LittleEndian.PutUint32(buf[off:], v) }

	put32(offSblkno, p.Sblkno)
	put32(offCblkno, p.Cblkno)
	put32(offIblkno, p.Iblkno)
	put32(offDblkno, p.Dblkno)
	put32(offCgoffset, p.Cgoffset)
	put32(offCgmask, p.Cgmask)
	putU32(offNcg, p.Ncg)
	put32(offBsize, bsize)
	put32(offFsize, fsize)
	put32(offFrag, int32(1)<<uint(fragshift))
	put32(offBmask, int32(-1)<<uint(p.Bshift))
	put32(offFmask, int32(-1)<<uint(p.Fshift))
	put32(offBshift, p.Bshift)
	put32(offFshift, p.Fshift)
	put32(offFragshift, fragshift)
	put32(offFsbtodb, p.Fshift-9)
	putU32(offInopb, uint32(bsize/128))
	put32(offCgsize, p.Cgsize)
	putU32(offIpg, p.Ipg)
	put32(offFpg, p.Fpg)
	put32(offMaxembedded, 60)
	put32(offInodefmt, 2)
	put32(offMagic, p.Magic)

	return buf
}

// CylinderGroupParams mirrors the fields LoadCylinderGroup validates.
type CylinderGroupParams struct {
	Cgx     uint32
	Ipg     int16
	Fpg     int32
	Magic   int32
	IusedOff, FreeOff, NextFreeOff uint32
	ImapBytes, FmapBytes          []byte
}

// EncodeCylinderGroup renders p as a cgSize-byte wire-format cylinder
// group image (header plus bitmap regions placed at their declared
// offsets).
func EncodeCylinderGroup(p CylinderGroupParams, cgSize int) []byte {
	buf := make([]byte, cgSize)

	binary.LittleEndian.PutUint32(buf[4:8], uint32(p.Magic))
	binary.LittleEndian.PutUint32(buf[8:12], 0) // cg_time
	binary.LittleEndian.PutUint32(buf[12:16], p.Cgx)
	binary.LittleEndian.PutUint16(buf[16:18], 0) // cg_ncyl
	binary.LittleEndian.PutUint16(buf[18:20], uint16(p.Ipg))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(p.Fpg))
	// cg_cs (16 bytes) at [24:40] left zero.
	// cg_rotor/frotor/irotor (12 bytes) at [40:52] left zero.
	// cg_frsum[8] (32 bytes) at [52:84] left zero.
	binary.LittleEndian.PutUint32(buf[84:88], 0) // cg_btotoff
	binary.LittleEndian.PutUint32(buf[88:92], 0) // cg_boff
	binary.LittleEndian.PutUint32(buf[92:96], p.IusedOff)
	binary.LittleEndian.PutUint32(buf[96:100], p.FreeOff)
	binary.LittleEndian.PutUint32(buf[100:104], p.NextFreeOff)

	copy(buf[p.IusedOff:], p.ImapBytes)
	copy(buf[p.FreeOff:], p.FmapBytes)

	return buf
}

// InodeParams describes one 128-byte on-disk inode to encode.
type InodeParams struct {
	Mode   uint16
	Nlink  uint16
	Size   uint64
	Uid    uint32
	Gid    uint32
	Blocks uint32

	Direct   [12]int32
	Indirect [3]int32

	Rdev    uint32
	Content []byte
}

// EncodeInode renders p as a 128-byte wire-format inode record.
func EncodeInode(p InodeParams) []byte {
	buf := make([]byte, 128)

	binary.LittleEndian.PutUint16(buf[0:2], p.Mode)
	binary.LittleEndian.PutUint16(buf[2:4], p.Nlink)
	binary.LittleEndian.PutUint64(buf[8:16], p.Size)

	data := buf[40:100] // i_data union, 60 bytes

	if len(p.Content) > 0 {
		copy(data, p.Content)
	} else if p.Rdev != 0 {
		binary.LittleEndian.PutUint32(data[0:4], p.Rdev)
	} else {
		for i, v := range p.Direct {
			binary.LittleEndian.PutUint32(data[i*4:], uint32(v))
		}
		for i, v := range p.Indirect {
			binary.LittleEndian.PutUint32(data[48+i*4:], uint32(v))
		}
	}

	binary.LittleEndian.PutUint32(buf[104:108], p.Blocks)
	binary.LittleEndian.PutUint32(buf[108:112], 0) // i_gen
	binary.LittleEndian.PutUint32(buf[112:116], p.Uid)
	binary.LittleEndian.PutUint32(buf[116:120], p.Gid)

	return buf
}

// EncodeIndirectBlock renders a slice of physical fragment numbers as
// an indirect block of size bytes (4<<order).
func EncodeIndirectBlock(entries []int32, size int) []byte {
	buf := make([]byte, size)
	for i, v := range entries {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return buf
}

// EncodeDirFragment lays out dirents back to back inside a
// DirFragSize-byte fragment; the last given entry becomes the
// catch-all, its reclen stretched to consume the rest of the fragment.
func EncodeDirFragment(entries []DirentSpec, fragSize int) []byte {
	buf := make([]byte, fragSize)
	off := 0

	for i, e := range entries {
		reclen := e.Reclen
		if reclen == 0 {
			reclen = align4(8 + len(e.Name))
		}
		if i == len(entries)-1 && off+reclen < fragSize {
			reclen = fragSize - off
		}

		binary.LittleEndian.PutUint32(buf[off:], uint32(e.Ino))
		binary.LittleEndian.PutUint16(buf[off+4:], uint16(reclen))
		buf[off+6] = e.Type
		buf[off+7] = byte(len(e.Name))
		copy(buf[off+8:], e.Name)

		off += reclen
	}

	return buf
}

// DirentSpec is one directory entry to place via EncodeDirFragment.
// Reclen of 0 means "compute the minimum 4-byte-aligned length".
type DirentSpec struct {
	Ino    int32
	Type   uint8
	Name   string
	Reclen int
}

func align4(n int) int {
	return (n + 3) &^ 3
}
