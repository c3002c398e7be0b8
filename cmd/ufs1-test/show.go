package main

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ikle/go-ufs1/internal/bio"
	"github.com/ikle/go-ufs1/internal/diag"
	"github.com/ikle/go-ufs1/internal/ufs1"
)

// run opens path read-only, validates its super block, and enumerates
// every cylinder group and live inode, writing the dump to stderr. It
// reports false (without error) when the super block is invalid, or
// when the super block is valid but some individual cylinder group or
// inode failed, matching ufs_fs_show's accumulate-and-continue behavior.
func run(path string, readAhead int) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	reg := bio.DefaultRegistry()
	dev := reg.Open(int(f.Fd()))
	defer reg.Close(dev)

	cache := bio.Default()

	sb, err := ufs1.LoadSuperBlock(cache, dev)
	if err != nil {
		fmt.Fprintln(os.Stderr, "E: Cannot find valid UFS1 super block")
		diag.Default().WithFields(logrus.Fields{"error": err}).Error("super block validation failed")
		return false, nil
	}

	showSuperBlock(sb)

	outputs := make([]bytes.Buffer, sb.Ncg)
	oks := make([]bool, sb.Ncg)

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for cgx := uint32(0); cgx < sb.Ncg; cgx++ {
		cgx := cgx

		if readAhead > 0 && cgx+1 < sb.Ncg {
			for a := 1; a <= readAhead && cgx+uint32(a) < sb.Ncg; a++ {
				pos := sb.CGCBlkno(cgx+uint32(a)) << sb.Fshift
				cache.ReadAhead(dev, pos, int(sb.Cgsize))
			}
		}

		g.Go(func() error {
			oks[cgx] = showCylinderGroup(&outputs[cgx], sb, cgx)
			return nil
		})
	}
	_ = g.Wait()

	ok := true
	for i := range outputs {
		os.Stderr.Write(outputs[i].Bytes())
		ok = ok && oks[i]
	}

	return ok, nil
}

func showSuperBlock(sb *ufs1.SuperBlock) {
	fmt.Fprintln(os.Stderr, "N: Valid UFS1 super block found")
	fmt.Fprintf(os.Stderr, "I:     block size  = %d\n", sb.BlockSize())
	fmt.Fprintf(os.Stderr, "I:     frag size   = %d\n", sb.FragSize())
	showStat(os.Stderr, sb.Stat)
}

func showStat(w *os.File, s ufs1.Stat) {
	fmt.Fprintf(w, "I:     directories = %d\n", s.Dirs)
	fmt.Fprintf(w, "I:     free blocks = %d\n", s.FreeBlocks)
	fmt.Fprintf(w, "I:     free inodes = %d\n", s.FreeInodes)
	fmt.Fprintf(w, "I:     free frags  = %d\n", s.FreeFrags)
}

func showCylinderGroup(out *bytes.Buffer, sb *ufs1.SuperBlock, cgx uint32) bool {
	cg, err := ufs1.LoadCylinderGroup(sb, cgx)
	if err != nil {
		fmt.Fprintf(out, "E: Cannot find valid UFS1 cylinder group %d\n", cgx)
		diag.Default().WithFields(map[string]interface{}{"cg": cgx, "error": err}).Warn("cylinder group validation failed")
		return false
	}
	defer cg.Close()

	fmt.Fprintf(out, "N: Valid UFS1 cylinder group %d found\n", cgx)
	showStatBuf(out, cg.Stat)
	fmt.Fprintln(out, "I: List of i-nodes:")

	ok := true
	for n := int32(0); n < cg.Ipg; n++ {
		if !showInode(out, sb, cg, n) {
			fmt.Fprintf(out, "E: Cannot read inode %d\n", cg.InodeNumber(n))
			diag.Default().WithFields(map[string]interface{}{"cg": cgx, "inode": n}).Warn("inode read failed")
			ok = false
		}
	}

	return ok
}

func showStatBuf(w *bytes.Buffer, s ufs1.Stat) {
	fmt.Fprintf(w, "I:     directories = %d\n", s.Dirs)
	fmt.Fprintf(w, "I:     free blocks = %d\n", s.FreeBlocks)
	fmt.Fprintf(w, "I:     free inodes = %d\n", s.FreeInodes)
	fmt.Fprintf(w, "I:     free frags  = %d\n", s.FreeFrags)
}

// showInode reports false only on a read/decode failure; an inode
// marked unused in the bitmap is simply skipped, matching ufs1_cg_inode_show.
func showInode(out *bytes.Buffer, sb *ufs1.SuperBlock, cg *ufs1.CylinderGroup, n int32) bool {
	if !cg.InodeUsed(n) {
		return true
	}

	inode, err := ufs1.FetchInode(cg, n)
	if err != nil {
		return false
	}

	fmt.Fprintf(out, "I:     %d: ", cg.InodeNumber(n))
	fmt.Fprint(out, ufs1.ModeString(inode.Mode))
	fmt.Fprintf(out, " %d %d %d %d, %d sectors",
		inode.Nlink, inode.Uid, inode.Gid, inode.Size, inode.Blocks)

	showInodeBlocks(out, sb, inode)
	fmt.Fprintln(out)

	if inode.Type() == ufs1.DTDir {
		showDirectory(out, inode)
	}

	return true
}

func showInodeBlocks(out *bytes.Buffer, sb *ufs1.SuperBlock, inode *ufs1.Inode) {
	if inode.Type() == ufs1.DTChr || inode.Type() == ufs1.DTBlk {
		rdev := inode.Rdev()
		fmt.Fprintf(out, " major %d minor %d", ufs1.Major(rdev), ufs1.Minor(rdev))
		return
	}

	if inode.Size == 0 {
		return
	}

	if target, ok := inode.Symlink(); ok {
		fmt.Fprintf(out, " -> %s", target)
		return
	}

	count := howmany(inode.Size, sb.BlockSize())
	if count > 12 {
		count = 12
	}

	for i := uint64(0); i < count; i++ {
		blk, err := inode.Block(i)
		if err != nil {
			fmt.Fprintf(out, ", <error: %v>", err)
			return
		}
		if i == 0 {
			fmt.Fprintf(out, " at %d", blk)
		} else {
			fmt.Fprintf(out, ", %d", blk)
		}
	}
}

func showDirectory(out *bytes.Buffer, inode *ufs1.Inode) {
	it := ufs1.NewDirIter(inode)

	for {
		d, ok, err := it.Next()
		if err != nil {
			fmt.Fprintf(out, "I:          <error: %v>\n", err)
			return
		}
		if !ok {
			return
		}
		if d.Ino != 0 && len(d.Name) > 0 {
			fmt.Fprintf(out, "I:          %2d: %s\n", d.Ino, d.Name)
		}
	}
}

func howmany(n uint64, unit int64) uint64 {
	return (n + uint64(unit) - 1) / uint64(unit)
}
