package domain

// DuplicateGroup 是按内容摘要聚合后的重复组。
// 为了数据局部性，组内只保存文件下标（指向 []ImageFile），避免复制大结构体。
//
// 不变量：
// - len(FileIdx) >= 2
// - 组内所有文件 Size 相同、内容摘要相同
// - FileIdx[0] 是被保留的 original（遍历顺序中最先出现者；该规则是刻意的简单选择，
//   不代表“最旧文件”等语义保证）
type DuplicateGroup struct {
	Digest  string // 十六进制内容摘要
	Size    int64
	FileIdx []int
}
