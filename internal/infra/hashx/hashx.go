package hashx

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
)

// BlockSize 是流式读取的块大小（64 KiB）。
const BlockSize = 64 * 1024

// Sum 计算文件全部字节的 MD5 十六进制摘要。
//
// 契约：
// - 摘要只取决于字节内容，与路径、文件名、时间戳无关
// - 任何打开/读取失败都返回 ok=false；调用方必须把它理解为
//   “该文件退出重复比较”，而不是致命错误
//
// MD5 在这里只是内容等价指纹（沿用既有格式），不承担任何安全性语义。
func Sum(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	h := md5.New()
	buf := make([]byte, BlockSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			// hash.Hash 的 Write 永不返回错误。
			_, _ = h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", false
		}
	}
	return hex.EncodeToString(h.Sum(nil)), true
}
