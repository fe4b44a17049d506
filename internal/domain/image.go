package domain

// ImageFile 描述一次扫描得到的图片文件（只做 stat，不读内容）。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 扫描阶段只做 stat，不读文件内容
// - 路径被移动/删除后记录即失效，后续阶段必须先重新确认存在性
type ImageFile struct {
	AbsPath string
	RelPath string // 相对其所属扫描根目录；仅用于稳定排序与展示
	Base    string // filename without ext
	Ext     string // ".jpg"（小写）
	Size    int64
	ModUnix int64
}
