package ufs1

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/ikle/go-ufs1/internal/bio"
)

func howmany(n, unit int64) int64 {
	return (n + unit - 1) / unit
}

// CylinderGroup is a loaded and validated UFS1 cylinder group: the raw
// image bytes plus the byte offsets of its inode-used and fragment-
// free bitmaps within that image.
type CylinderGroup struct {
	sb  *SuperBlock
	buf *bio.Buffer

	Cgx   uint32
	Start int64
	Ipg   int32
	Fpg   int32

	imapOff int64
	fmapOff int64

	Stat Stat
}

// LoadCylinderGroup reads and validates cylinder group cgx of sb.
func LoadCylinderGroup(sb *SuperBlock, cgx uint32) (*CylinderGroup, error) {
	pos := sb.CGCBlkno(cgx) << sb.Fshift

	buf, err := sb.Cache().Read(sb.Dev(), pos, int(sb.Cgsize))
	if err != nil {
		return nil, errors.Wrapf(err, "ufs1: cannot read cylinder group %d", cgx)
	}

	var raw rawCylinderGroup
	if err := binary.Read(bytes.NewReader(buf.Data()[:cgWireSize]), binary.LittleEndian, &raw); err != nil {
		buf.ReadEnd()
		buf.Put()
		return nil, errors.Wrapf(err, "ufs1: cannot decode cylinder group %d", cgx)
	}

	if raw.CgMagic != CGMagic {
		buf.ReadEnd()
		buf.Put()
		return nil, errors.Errorf("ufs1: cannot find valid cylinder group %d magic", cgx)
	}

	c := &CylinderGroup{
		sb:      sb,
		buf:     buf,
		Cgx:     raw.CgCgx,
		Start:   sb.CGStart(cgx),
		Ipg:     int32(raw.CgIpg),
		Fpg:     raw.CgFpg,
		imapOff: int64(raw.CgIusedoff),
		fmapOff: int64(raw.CgFreeoff),
		Stat:    raw.CgCs.decode(),
	}

	if c.Cgx != cgx || int64(c.Ipg) != int64(sb.Ipg) || int64(c.Fpg) > sb.Fpg {
		c.Close()
		return nil, errors.Errorf("ufs1: invalid cylinder group %d configuration", cgx)
	}

	emapOff := int64(raw.CgNextfreeoff)

	if emapOff > sb.Cgsize || c.fmapOff >= emapOff || c.imapOff >= c.fmapOff ||
		(c.fmapOff-c.imapOff) < howmany(int64(c.Ipg), 8) ||
		(emapOff-c.fmapOff) < howmany(int64(c.Fpg), 8) {
		c.Close()
		return nil, errors.Errorf("ufs1: invalid cylinder group %d layout", cgx)
	}

	return c, nil
}

// Close releases the cylinder group's underlying buffer. It must be
// called exactly once, mirroring ufs1_cg_fini.
func (c *CylinderGroup) Close() {
	c.buf.ReadEnd()
	c.buf.Put()
}

// InodeUsed reports whether CG-local inode index n is marked used in
// the inode bitmap.
func (c *CylinderGroup) InodeUsed(n int32) bool {
	return bitSet(c.buf.Data(), c.imapOff, n)
}

// FragFree reports whether CG-local fragment index n is marked free
// in the fragment bitmap.
func (c *CylinderGroup) FragFree(n int32) bool {
	return bitSet(c.buf.Data(), c.fmapOff, n)
}

func bitSet(data []byte, byteOff int64, bit int32) bool {
	idx := byteOff + int64(bit/8)
	return data[idx]&(1<<uint(bit%8)) != 0
}

// InodeNumber returns the filesystem-wide inode number of CG-local
// index n within this cylinder group.
func (c *CylinderGroup) InodeNumber(n int32) uint32 {
	return c.sb.Ipg*c.Cgx + uint32(n)
}
