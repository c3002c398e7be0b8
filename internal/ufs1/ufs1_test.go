package ufs1_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ikle/go-ufs1/internal/bio"
	"github.com/ikle/go-ufs1/internal/devio"
	"github.com/ikle/go-ufs1/internal/metrics"
	"github.com/ikle/go-ufs1/internal/ufs1"
	"github.com/ikle/go-ufs1/internal/ufs1/ufs1test"
)

func newTestDevice(t *testing.T, img *ufs1test.Image) (*bio.Cache, devio.Handle, func()) {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "ufs1")
	require.NoError(t, err)
	_, err = f.Write(img.Bytes())
	require.NoError(t, err)

	reg := devio.NewRegistry()
	h := reg.Open(int(f.Fd()))

	c := bio.NewCache(reg, metrics.Noop(), nil)

	return c, h, func() { f.Close() }
}

// buildImage lays a super block and a single matching cylinder group
// onto a fresh image, returning the image plus the params used so
// callers can place inodes and data at CG-relative fragments.
func buildImage(t *testing.T, sbp ufs1test.SuperBlockParams) (*ufs1test.Image, ufs1test.SuperBlockParams) {
	t.Helper()

	img := ufs1test.NewImage(int(sbp.Dblkno)<<uint(sbp.Fshift) + int(sbp.Fpg)<<uint(sbp.Fshift))
	img.WriteAt(ufs1.SBOffset, ufs1test.EncodeSuperBlock(sbp))

	cgPos := int64(sbp.Cblkno) << uint(sbp.Fshift)
	imapBytes := howmanyBytes(int(sbp.Ipg))
	fmapBytes := howmanyBytes(int(sbp.Fpg))

	cgp := ufs1test.CylinderGroupParams{
		Cgx:          0,
		Ipg:          int16(sbp.Ipg),
		Fpg:          sbp.Fpg,
		Magic:        ufs1.CGMagic,
		IusedOff:     168,
		ImapBytes:    make([]byte, imapBytes),
		FmapBytes:    make([]byte, fmapBytes),
	}
	cgp.FreeOff = cgp.IusedOff + uint32(imapBytes)
	cgp.NextFreeOff = cgp.FreeOff + uint32(fmapBytes)

	img.WriteAt(cgPos, ufs1test.EncodeCylinderGroup(cgp, int(sbp.Cgsize)))

	return img, sbp
}

func howmanyBytes(bits int) int {
	return (bits + 7) / 8
}

func TestLoadSuperBlockRejectsBadMagic(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	sbp.Magic = 0

	img, _ := buildImage(t, sbp)
	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	_, err := ufs1.LoadSuperBlock(c, h)
	require.Error(t, err)
	require.Contains(t, err.Error(), "magic")
}

func TestLoadSuperBlockAndCylinderGroupSucceed(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	img, _ := buildImage(t, sbp)
	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	sb, err := ufs1.LoadSuperBlock(c, h)
	require.NoError(t, err)

	cg, err := ufs1.LoadCylinderGroup(sb, 0)
	require.NoError(t, err)
	defer cg.Close()

	require.EqualValues(t, 0, cg.Cgx)
	require.EqualValues(t, sbp.Ipg, cg.Ipg)
}

func TestLoadCylinderGroupRejectsWrongIndex(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	sbp.Ncg = 2
	img, _ := buildImage(t, sbp)
	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	sb, err := ufs1.LoadSuperBlock(c, h)
	require.NoError(t, err)

	_, err = ufs1.LoadCylinderGroup(sb, 1)
	require.Error(t, err)
}

// inodeOffset returns the absolute byte offset of CG-local inode n.
func inodeOffset(sbp ufs1test.SuperBlockParams, n int32) int64 {
	return (int64(sbp.Iblkno) << uint(sbp.Fshift)) + int64(n)*ufs1.InodeSize
}

func fragOffset(sbp ufs1test.SuperBlockParams, frag int32) int64 {
	return int64(frag) << uint(sbp.Fshift)
}

func TestInodeBlockEmptyFile(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	img, _ := buildImage(t, sbp)

	img.WriteAt(inodeOffset(sbp, 1), ufs1test.EncodeInode(ufs1test.InodeParams{
		Mode: uint16(ufs1.DTReg << 12),
		Size: 0,
	}))

	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	sb, err := ufs1.LoadSuperBlock(c, h)
	require.NoError(t, err)
	cg, err := ufs1.LoadCylinderGroup(sb, 0)
	require.NoError(t, err)
	defer cg.Close()

	inode, err := ufs1.FetchInode(cg, 1)
	require.NoError(t, err)

	blk, err := inode.Block(0)
	require.NoError(t, err)
	require.EqualValues(t, 0, blk)
}

func TestInodeBlockDirectOnly(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	img, _ := buildImage(t, sbp)

	var direct [12]int32
	direct[0] = int32(sbp.Dblkno)
	direct[5] = int32(sbp.Dblkno) + 1

	img.WriteAt(inodeOffset(sbp, 1), ufs1test.EncodeInode(ufs1test.InodeParams{
		Mode:   uint16(ufs1.DTReg << 12),
		Size:   4096 * 6,
		Direct: direct,
	}))

	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	sb, err := ufs1.LoadSuperBlock(c, h)
	require.NoError(t, err)
	cg, err := ufs1.LoadCylinderGroup(sb, 0)
	require.NoError(t, err)
	defer cg.Close()

	inode, err := ufs1.FetchInode(cg, 1)
	require.NoError(t, err)

	blk0, err := inode.Block(0)
	require.NoError(t, err)
	require.EqualValues(t, sbp.Dblkno, blk0)

	blk5, err := inode.Block(5)
	require.NoError(t, err)
	require.EqualValues(t, int32(sbp.Dblkno)+1, blk5)

	blk1, err := inode.Block(1)
	require.NoError(t, err)
	require.EqualValues(t, 0, blk1) // unallocated direct pointer is a hole
}

func TestInodeBlockSingleIndirect(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	img, _ := buildImage(t, sbp)

	order := uint(sbp.Bshift) - 2
	count := int32(1) << order

	indirectFrag := int32(sbp.Dblkno)
	dataFrag := int32(sbp.Dblkno) + 1

	entries := make([]int32, count)
	entries[0] = dataFrag

	img.WriteAt(fragOffset(sbp, indirectFrag), ufs1test.EncodeIndirectBlock(entries, 1<<sbp.Bshift))

	var indirect [3]int32
	indirect[0] = indirectFrag

	img.WriteAt(inodeOffset(sbp, 1), ufs1test.EncodeInode(ufs1test.InodeParams{
		Mode:     uint16(ufs1.DTReg << 12),
		Size:     uint64(13) * 4096,
		Indirect: indirect,
	}))

	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	sb, err := ufs1.LoadSuperBlock(c, h)
	require.NoError(t, err)
	cg, err := ufs1.LoadCylinderGroup(sb, 0)
	require.NoError(t, err)
	defer cg.Close()

	inode, err := ufs1.FetchInode(cg, 1)
	require.NoError(t, err)

	blk, err := inode.Block(12)
	require.NoError(t, err)
	require.Equal(t, dataFrag, blk)
}

func TestInodeBlockHoleInSingleIndirect(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	img, _ := buildImage(t, sbp)

	order := uint(sbp.Bshift) - 2
	count := int32(1) << order

	indirectFrag := int32(sbp.Dblkno)
	entries := make([]int32, count) // all zero: ib[0] is allocated, its entry 0 is a hole

	img.WriteAt(fragOffset(sbp, indirectFrag), ufs1test.EncodeIndirectBlock(entries, 1<<sbp.Bshift))

	var indirect [3]int32
	indirect[0] = indirectFrag

	img.WriteAt(inodeOffset(sbp, 1), ufs1test.EncodeInode(ufs1test.InodeParams{
		Mode:     uint16(ufs1.DTReg << 12),
		Size:     uint64(13) * 4096,
		Indirect: indirect,
	}))

	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	sb, err := ufs1.LoadSuperBlock(c, h)
	require.NoError(t, err)
	cg, err := ufs1.LoadCylinderGroup(sb, 0)
	require.NoError(t, err)
	defer cg.Close()

	inode, err := ufs1.FetchInode(cg, 1)
	require.NoError(t, err)

	blk, err := inode.Block(12)
	require.NoError(t, err)
	require.EqualValues(t, 0, blk)
}

func TestDirIterWalksEntries(t *testing.T) {
	sbp := ufs1test.DefaultSuperBlockParams()
	img, _ := buildImage(t, sbp)

	dataFrag := int32(sbp.Dblkno)
	frag := ufs1test.EncodeDirFragment([]ufs1test.DirentSpec{
		{Ino: 2, Type: ufs1.DTDir, Name: "."},
		{Ino: 2, Type: ufs1.DTDir, Name: ".."},
		{Ino: 5, Type: ufs1.DTReg, Name: "hello.txt"},
	}, ufs1.DirFragSize)

	img.WriteAt(fragOffset(sbp, dataFrag), frag)

	var direct [12]int32
	direct[0] = dataFrag

	img.WriteAt(inodeOffset(sbp, 2), ufs1test.EncodeInode(ufs1test.InodeParams{
		Mode:   uint16(ufs1.DTDir << 12),
		Size:   ufs1.DirFragSize,
		Direct: direct,
	}))

	c, h, closeFn := newTestDevice(t, img)
	defer closeFn()

	sb, err := ufs1.LoadSuperBlock(c, h)
	require.NoError(t, err)
	cg, err := ufs1.LoadCylinderGroup(sb, 0)
	require.NoError(t, err)
	defer cg.Close()

	inode, err := ufs1.FetchInode(cg, 2)
	require.NoError(t, err)

	it := ufs1.NewDirIter(inode)

	var names []string
	for {
		d, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		names = append(names, d.Name)
	}

	require.Equal(t, []string{".", "..", "hello.txt"}, names)
}
