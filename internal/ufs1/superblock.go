package ufs1

import (
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"

	"github.com/ikle/go-ufs1/internal/bio"
	"github.com/ikle/go-ufs1/internal/devio"
)

var (
	sbWireSize = binary.Size(rawSuperBlock{})
	cgWireSize = binary.Size(rawCylinderGroup{})
)

// SuperBlock is the validated in-memory subset of a UFS1 super block
// needed to navigate the filesystem: geometry, per-CG region offsets,
// and the statistics snapshot.
type SuperBlock struct {
	dev   devio.Handle
	cache *bio.Cache

	Sblkno   int64
	Cblkno   int64
	Iblkno   int64
	Dblkno   int64
	Cgoffset int64
	Cgmask   int64
	Ncg      uint32
	Ipg      uint32
	Fpg      int64
	Cgsize   int64

	Bshift uint
	Fshift uint
	Inopb  uint32

	Stat Stat
}

// LoadSuperBlock reads and validates the super block of dev through
// cache. Checks run in stages: a bad magic fails at once; all broken
// region-order and CG-size invariants are then reported together in
// one error; only if those hold are the shift/size relations checked,
// again all reported together; the i-node format is checked last.
func LoadSuperBlock(cache *bio.Cache, dev devio.Handle) (*SuperBlock, error) {
	buf, err := cache.Read(dev, SBOffset, sbWireSize)
	if err != nil {
		return nil, errors.Wrap(err, "ufs1: cannot read super block")
	}
	defer buf.ReadEnd()
	defer buf.Put()

	var raw rawSuperBlock
	if err := binary.Read(bytes.NewReader(buf.Data()), binary.LittleEndian, &raw); err != nil {
		return nil, errors.Wrap(err, "ufs1: cannot decode super block")
	}

	if raw.SMagic != SBMagic {
		return nil, errors.New("ufs1: cannot find valid super block magic")
	}

	s := &SuperBlock{
		dev:      dev,
		cache:    cache,
		Sblkno:   int64(raw.SSblkno),
		Cblkno:   int64(raw.SCblkno),
		Iblkno:   int64(raw.SIblkno),
		Dblkno:   int64(raw.SDblkno),
		Cgoffset: int64(raw.SCgoffset),
		Cgmask:   int64(raw.SCgmask),
		Ncg:      raw.SNcg,
		Ipg:      raw.SIpg,
		Fpg:      int64(raw.SFpg),
		Cgsize:   int64(raw.SCgsize),
		Bshift:   uint(raw.SBshift),
		Fshift:   uint(raw.SFshift),
		Inopb:    raw.SInopb,
		Stat:     raw.SCstotal.decode(),
	}

	var problems []string

	if !(s.Sblkno < s.Cblkno && s.Cblkno < s.Iblkno && s.Iblkno < s.Dblkno && s.Dblkno < s.Fpg) {
		problems = append(problems, "region order sblkno<cblkno<iblkno<dblkno<fpg violated")
	}
	if s.Cgsize < int64(cgWireSize) {
		problems = append(problems, "cylinder group size smaller than on-disk descriptor")
	}
	if s.Cgsize > (s.Iblkno-s.Cblkno)<<s.Fshift {
		problems = append(problems, "cylinder group size exceeds inode region capacity")
	}
	if len(problems) > 0 {
		return nil, errors.Errorf("ufs1: invalid file system layout: %s", strings.Join(problems, "; "))
	}

	var cfg []string

	bshift, fshift := int64(raw.SBshift), int64(raw.SFshift)
	if bshift < 12 {
		cfg = append(cfg, "bshift below minimum block size")
	}
	if int64(raw.SBsize) != 1<<bshift {
		cfg = append(cfg, "bsize does not match bshift")
	}
	if fshift < 9 {
		cfg = append(cfg, "fshift below minimum fragment size")
	}
	if int64(raw.SFsize) != 1<<fshift {
		cfg = append(cfg, "fsize does not match fshift")
	}
	fragshift := bshift - fshift
	if int64(raw.SFragshift) != fragshift {
		cfg = append(cfg, "fragshift does not match bshift-fshift")
	}
	if fragshift < 0 || fragshift > 3 {
		cfg = append(cfg, "fragshift out of range [0,3]")
	}
	if int64(raw.SFsbtodb) != fshift-9 {
		cfg = append(cfg, "fsbtodb does not match fshift-9")
	}
	if int64(raw.SFrag) != 1<<fragshift {
		cfg = append(cfg, "frag does not match 1<<fragshift")
	}
	if int64(raw.SBmask) != int64(int32(-1)<<uint(bshift)) {
		cfg = append(cfg, "bmask does not match ~0<<bshift")
	}
	if int64(raw.SFmask) != int64(int32(-1)<<uint(fshift)) {
		cfg = append(cfg, "fmask does not match ~0<<fshift")
	}
	if int64(raw.SInopb) != int64(raw.SBsize)/128 {
		cfg = append(cfg, "inopb does not match bsize/128")
	}
	if len(cfg) > 0 {
		return nil, errors.Errorf("ufs1: invalid file system configuration: %s", strings.Join(cfg, "; "))
	}

	if raw.SMaxembedded != MaxEmbedded || raw.SInodefmt != InodeFmt {
		return nil, errors.New("ufs1: unknown i-node format")
	}

	return s, nil
}

// cgBase returns the fragment number at which cylinder group cgx's
// region begins, before the rotational scatter offset.
func (s *SuperBlock) cgBase(cgx uint32) int64 {
	return s.Fpg * int64(cgx)
}

// CGStart returns the absolute fragment number of cylinder group
// cgx's region, including the rotational scatter offset historically
// used to spread CG starts across different disk heads.
func (s *SuperBlock) CGStart(cgx uint32) int64 {
	return s.cgBase(cgx) + s.Cgoffset*(int64(cgx)&^s.Cgmask)
}

// CGSBlkno returns the absolute fragment number of cylinder group
// cgx's super block copy.
func (s *SuperBlock) CGSBlkno(cgx uint32) int64 { return s.CGStart(cgx) + s.Sblkno }

// CGCBlkno returns the absolute fragment number of cylinder group
// cgx's own CG descriptor.
func (s *SuperBlock) CGCBlkno(cgx uint32) int64 { return s.CGStart(cgx) + s.Cblkno }

// CGIBlkno returns the absolute fragment number of cylinder group
// cgx's inode region.
func (s *SuperBlock) CGIBlkno(cgx uint32) int64 { return s.CGStart(cgx) + s.Iblkno }

// CGDBlkno returns the absolute fragment number of cylinder group
// cgx's data region.
func (s *SuperBlock) CGDBlkno(cgx uint32) int64 { return s.CGStart(cgx) + s.Dblkno }

// Dev returns the device handle this super block was loaded from.
func (s *SuperBlock) Dev() devio.Handle { return s.dev }

// Cache returns the BIO cache this super block reads through.
func (s *SuperBlock) Cache() *bio.Cache { return s.cache }

// BlockSize returns the filesystem's block size in bytes.
func (s *SuperBlock) BlockSize() int64 { return 1 << s.Bshift }

// FragSize returns the filesystem's fragment size in bytes.
func (s *SuperBlock) FragSize() int64 { return 1 << s.Fshift }
