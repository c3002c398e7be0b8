package ufs1

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const direntHeaderSize = 8 // int32 ino + uint16 reclen + uint8 type + uint8 namlen

// Dirent is one decoded UFS1 directory entry.
type Dirent struct {
	Ino  int32
	Type uint8
	Name string
}

// direntValid reports whether the record at the start of rec, with
// space bytes of fragment remaining, is a well-formed directory
// entry: it must fit the fixed header, its reclen must be 4-byte
// aligned, large enough to hold its namlen bytes, and not overrun the
// fragment's remaining space.
func direntValid(rec []byte, space int) bool {
	if space < direntHeaderSize {
		return false
	}

	reclen := int(binary.LittleEndian.Uint16(rec[4:6]))
	namlen := int(rec[7])

	return reclen&3 == 0 && reclen-direntHeaderSize >= namlen && reclen <= space
}

// DirIter walks the directory entries of an inode fragment by
// fragment, honoring only its direct blocks. A directory whose
// content extends into indirect blocks reports an explicit error
// rather than silently truncating.
type DirIter struct {
	inode *Inode
	sb    *SuperBlock

	frag uint64
	buf  []byte
	off  int

	done bool
	err  error
}

// NewDirIter returns an iterator over inode's directory entries.
func NewDirIter(inode *Inode) *DirIter {
	return &DirIter{inode: inode, sb: inode.sb}
}

func (it *DirIter) pullFragment() bool {
	head := it.frag * DirFragSize
	next := (it.frag + 1) * DirFragSize

	if next > it.inode.Size {
		return false
	}

	block := head >> it.sb.Bshift
	if block >= numDirect {
		it.err = errors.New("ufs1: directory spans indirect blocks, not supported")
		return false
	}

	offs := head & ((uint64(1) << it.sb.Bshift) - 1)
	physFrag := it.inode.directBlock(int(block))
	pos := int64(physFrag)<<it.sb.Fshift + int64(offs)

	buf, err := it.sb.Cache().Read(it.sb.Dev(), pos, DirFragSize)
	if err != nil {
		it.err = errors.Wrapf(err, "ufs1: cannot read directory fragment %d", it.frag)
		return false
	}

	data := make([]byte, DirFragSize)
	copy(data, buf.Data())
	buf.ReadEnd()
	buf.Put()

	it.buf = data
	it.off = 0
	it.frag++
	return true
}

// Next returns the next syntactically valid entry, including ones
// with a zero inode number or zero name length — skipping those is
// left to the caller, matching how the reference dump filters them
// only at print time.
func (it *DirIter) Next() (Dirent, bool, error) {
	for {
		if it.done {
			return Dirent{}, false, it.err
		}

		if it.buf == nil || it.off >= len(it.buf) {
			if !it.pullFragment() {
				it.done = true
				return Dirent{}, false, it.err
			}
		}

		rec := it.buf[it.off:]
		if !direntValid(rec, len(rec)) {
			it.buf = nil
			continue
		}

		reclen := int(binary.LittleEndian.Uint16(rec[4:6]))
		ino := int32(binary.LittleEndian.Uint32(rec[0:4]))
		typ := rec[6]
		namlen := int(rec[7])
		name := string(rec[direntHeaderSize : direntHeaderSize+namlen])

		it.off += reclen

		return Dirent{Ino: ino, Type: typ, Name: name}, true, nil
	}
}
