package ufs1

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Directory entry type hints, from IFTODT(mode). These have carried
// the same values across 4.4BSD, FreeBSD, illumos, Linux, NetBSD and
// OpenBSD since their introduction.
const (
	DTUnknown = 0
	DTFifo    = 1
	DTChr     = 2
	DTDir     = 4
	DTBlk     = 6
	DTReg     = 8
	DTLnk     = 10
	DTSock    = 12
	DTWht     = 14
)

// IFTODT converts an on-disk i_mode to a directory entry type hint.
func IFTODT(mode uint16) int {
	return int((mode & 0170000) >> 12)
}

// Inode is the decoded form of a 128-byte on-disk UFS1 inode record.
// The 60-byte union region (direct/indirect block pointers, rdev,
// or embedded symlink content) is kept as raw bytes and interpreted
// on demand by file type, per the type the inode actually holds.
type Inode struct {
	sb *SuperBlock

	Mode    uint16
	Nlink   uint16
	Size    uint64
	Atime   uint32
	Mtime   uint32
	Ctime   uint32
	Flags   uint32
	Blocks  uint32
	Gen     uint32
	Uid     uint32
	Gid     uint32

	data [MaxEmbedded]byte
}

// FetchInode reads CG-local inode index n out of cg.
func FetchInode(cg *CylinderGroup, n int32) (*Inode, error) {
	sb := cg.sb
	pos := (sb.CGIBlkno(cg.Cgx) << sb.Fshift) + int64(n)*InodeSize

	buf, err := sb.Cache().Read(sb.Dev(), pos, InodeSize)
	if err != nil {
		return nil, errors.Wrapf(err, "ufs1: cannot read inode %d", cg.InodeNumber(n))
	}
	defer buf.ReadEnd()
	defer buf.Put()

	var raw rawInode
	if err := binary.Read(bytes.NewReader(buf.Data()), binary.LittleEndian, &raw); err != nil {
		return nil, errors.Wrapf(err, "ufs1: cannot decode inode %d", cg.InodeNumber(n))
	}

	return &Inode{
		sb:     sb,
		Mode:   raw.IMode,
		Nlink:  raw.INlink,
		Size:   raw.ISize,
		Atime:  raw.IAtime,
		Mtime:  raw.IMtime,
		Ctime:  raw.ICtime,
		Flags:  raw.IFlags,
		Blocks: raw.IBlocks,
		Gen:    raw.IGen,
		Uid:    raw.IUid,
		Gid:    raw.IGid,
		data:   raw.IData,
	}, nil
}

// Type returns the directory entry type hint for this inode's mode.
func (o *Inode) Type() int { return IFTODT(o.Mode) }

func (o *Inode) directBlock(i int) int32 {
	return int32(binary.LittleEndian.Uint32(o.data[i*4:]))
}

func (o *Inode) indirectBlock(level int) int32 {
	return int32(binary.LittleEndian.Uint32(o.data[numDirect*4+level*4:]))
}

// Rdev returns the packed major/minor device number embedded in a
// character- or block-special inode.
func (o *Inode) Rdev() uint32 {
	return binary.LittleEndian.Uint32(o.data[:4])
}

// Content returns the inode's embedded short-symlink bytes, trimmed
// to Size. Only meaningful when Size < MaxEmbedded and Type() == DTLnk.
func (o *Inode) Content() []byte {
	if o.Size > MaxEmbedded {
		return nil
	}
	return o.data[:o.Size]
}

// Symlink returns the inode's target path and true when it is a
// symbolic link short enough to be stored inline in the union region
// rather than in a data block.
func (o *Inode) Symlink() (string, bool) {
	if o.Type() != DTLnk || o.Size >= MaxEmbedded {
		return "", false
	}
	return string(o.data[:o.Size]), true
}

// Block translates logical file-block index i to a physical fragment
// number, walking direct and single/double/triple indirect pointers.
// A hole (unallocated block) is reported as fragment 0, not an error.
func (o *Inode) Block(i uint64) (int32, error) {
	if o.Size == 0 {
		return 0, nil
	}
	if i < numDirect {
		return o.directBlock(int(i)), nil
	}

	order := o.sb.Bshift - 2
	return o.blockIndirect(i-numDirect, order)
}

func (o *Inode) blockIndirect(i0 uint64, order uint) (int32, error) {
	count := uint64(1) << order

	if i0 < count {
		return o.pull(o.indirectBlock(0), order, i0)
	}
	i0 -= count

	if i0 < count*count {
		return o.blockDouble(o.indirectBlock(1), i0, order, count)
	}
	i0 -= count * count

	if i0 < count*count*count {
		return o.blockTriple(o.indirectBlock(2), i0, order, count)
	}

	return 0, nil
}

func (o *Inode) blockDouble(frag int32, i0 uint64, order uint, count uint64) (int32, error) {
	l1, err := o.pull(frag, order, i0/count)
	if err != nil || l1 == 0 {
		return 0, err
	}
	return o.pull(l1, order, i0%count)
}

func (o *Inode) blockTriple(frag int32, i0 uint64, order uint, count uint64) (int32, error) {
	l2, err := o.pull(frag, order, i0/(count*count))
	if err != nil || l2 == 0 {
		return 0, err
	}

	rem := i0 % (count * count)

	l1, err := o.pull(l2, order, rem/count)
	if err != nil || l1 == 0 {
		return 0, err
	}
	return o.pull(l1, order, rem%count)
}

// pull reads the 4-byte pointer at index idx of the indirect block
// located at fragment frag, which holds 1<<order pointers. frag == 0
// means no indirect block is allocated at this level and is returned
// as a hole without issuing any read.
func (o *Inode) pull(frag int32, order uint, idx uint64) (int32, error) {
	if frag == 0 {
		return 0, nil
	}

	pos := int64(frag) << o.sb.Fshift
	size := 4 << order

	buf, err := o.sb.Cache().Read(o.sb.Dev(), pos, size)
	if err != nil {
		return 0, errors.Wrapf(err, "ufs1: cannot pull indirect block at fragment %d", frag)
	}
	defer buf.ReadEnd()
	defer buf.Put()

	return int32(binary.LittleEndian.Uint32(buf.Data()[idx*4 : idx*4+4])), nil
}
