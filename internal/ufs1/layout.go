// Package ufs1 reads the on-disk structures of a UNIX File System v1
// (4.4BSD/FreeBSD-compatible) image: super block, cylinder groups,
// inodes, and directory entries.
package ufs1

const (
	// SBMagic identifies a valid UFS1 super block.
	SBMagic = 0x00011954
	// CGMagic identifies a valid UFS1 cylinder group.
	CGMagic = 0x00090255

	// SBOffset is the fixed byte offset of the super block image.
	SBOffset = 8192

	// InodeSize is the on-disk size of one inode record.
	InodeSize = 128
	// InodeFmt is the only supported i-node format (4.4BSD).
	InodeFmt = 2
	// MaxEmbedded is the embedded-content size shared by rdev and
	// short symlink targets.
	MaxEmbedded = 60

	// DirFragSize is the size of one directory fragment.
	DirFragSize = 512

	numDirect = 12
)

// rawStat mirrors struct ufs1_cs: directory/block/inode/frag counters
// carried by both the super block and each cylinder group.
type rawStat struct {
	Ndir   int32
	Nbfree int32
	Nifree int32
	Nffree int32
}

// Stat is the decoded form of rawStat.
type Stat struct {
	Dirs       int32
	FreeBlocks int32
	FreeInodes int32
	FreeFrags  int32
}

func (s rawStat) decode() Stat {
	return Stat{Dirs: s.Ndir, FreeBlocks: s.Nbfree, FreeInodes: s.Nifree, FreeFrags: s.Nffree}
}

// rawSuperBlock mirrors struct ufs1_sb (on-disk format version 2,
// 0x560 bytes). Field names keep the on-disk s_ prefix so the layout
// reads next to the structure it transliterates.
type rawSuperBlock struct {
	SLink     int32
	SRlink    int32
	SSblkno   int32
	SCblkno   int32
	SIblkno   int32
	SDblkno   int32
	SCgoffset int32
	SCgmask   int32
	STime     uint32
	SSize     int32
	SDsize    int32
	SNcg      uint32
	SBsize    int32
	SFsize    int32
	SFrag     int32
	SMinfree  int32
	/* 0x40 */
	SRotdelay   int32
	SRps        int32
	SBmask      int32
	SFmask      int32
	SBshift     int32
	SFshift     int32
	SMaxcontig  int32
	SMaxbpg     int32
	SFragshift  int32
	SFsbtodb    int32
	SSbsize     int32
	SCsmask     int32
	SCsshift    int32
	SNindir     int32
	SInopb      uint32
	SNspf       int32
	/* 0x80 */
	SOptim      int32
	SNpsect     int32
	SInterleave int32
	STrackskew  int32
	SId         [2]int32
	SCsaddr     int32
	SCssize     int32
	SCgsize     int32
	SNtrak      int32
	SNsect      int32
	SSpc        int32
	SNcyl       int32
	SCpg        int32
	SIpg        uint32
	SFpg        int32
	/* 0xC0 */
	SCstotal rawStat
	SFmod    int8
	SClean   int8
	SRonly   int8
	SFlags   int8
	SRoot    [468]uint8
	SVolname [32]uint8
	SSwuid   uint64
	SPad     int32

	SCgrotor      int32
	SCsp          [32]int32
	SCpc          int32
	SOpostbl      [128]int16
	SSparecon     [50]int32
	SContigsumlen int32
	SMaxembedded  int32
	SInodefmt     int32
	SMaxfilesize  uint64
	SQbmask       int64
	SQfmask       int64
	SState        int32
	SPostblformat int32
	SNrpos        int32
	SPostbloff    int32
	SRotbloff     int32
	SMagic        int32
	/* 0x560 */
}

// rawCylinderGroup mirrors struct ufs1_cg_v2 up to (not including) the
// trailing variable-length cg_space region, which this reader accesses
// by byte offset rather than as a Go field.
type rawCylinderGroup struct {
	CgLink  int32
	CgMagic int32
	CgTime  uint32
	CgCgx   uint32
	CgNcyl  int16
	CgIpg   int16
	CgFpg   int32
	CgCs    rawStat
	CgRotor int32
	CgFrotor int32
	CgIrotor int32
	CgFrsum [8]int32

	CgBtotoff       uint32
	CgBoff          uint32
	CgIusedoff      uint32
	CgFreeoff       uint32
	CgNextfreeoff   uint32
	CgClustersumoff uint32
	CgClusteroff    uint32
	CgNclusterblks  uint32
	CgSparecon      [13]int32
}

// rawInode mirrors struct ufs1_inode (128 bytes).
type rawInode struct {
	IMode     uint16
	INlink    uint16
	IFreelink uint32
	ISize     uint64
	IAtime    uint32
	IAtimeNs  uint32
	IMtime    uint32
	IMtimeNs  uint32
	ICtime    uint32
	ICtimeNs  uint32
	IData     [MaxEmbedded]byte
	IFlags    uint32
	IBlocks   uint32
	IGen      uint32
	IUid      uint32
	IGid      uint32
	IModrev   uint64
}
