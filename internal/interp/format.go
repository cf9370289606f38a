package interp

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/wfunc/if-gateway/internal/models"
)

// 扩展名到格式的映射
var extFormats = map[string]string{
	".ulx":    models.FormatGlulx,
	".gblorb": models.FormatGlulx,
	".blorb":  models.FormatGlulx,
	".z3":     models.FormatZcode,
	".z4":     models.FormatZcode,
	".z5":     models.FormatZcode,
	".z8":     models.FormatZcode,
	".zblorb": models.FormatZcode,
	".ink":    models.FormatInk,
	".ys":     models.FormatYs,
}

// DetectFormat 根据文件名推断游戏格式；扩展名不认识时退回内容嗅探。
// data 可以为nil（只看文件名），两者都认不出返回空串。
func DetectFormat(filename string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if format, ok := extFormats[ext]; ok {
		return format
	}

	// ink编译产物常见是 .json / .ink.json
	if ext == ".json" {
		if data == nil || bytes.Contains(data, []byte(`"inkVersion"`)) {
			return models.FormatInk
		}
		return models.FormatUnknown
	}

	if data == nil {
		return models.FormatUnknown
	}
	return sniffFormat(data)
}

// sniffFormat 内容嗅探
func sniffFormat(data []byte) string {
	if len(data) < 12 {
		return models.FormatUnknown
	}

	// 裸Glulx镜像
	if bytes.HasPrefix(data, []byte("Glul")) {
		return models.FormatGlulx
	}

	// blorb容器：FORM....IFRS，按执行块区分
	if bytes.HasPrefix(data, []byte("FORM")) && bytes.Equal(data[8:12], []byte("IFRS")) {
		head := data
		if len(head) > 512 {
			head = head[:512]
		}
		if bytes.Contains(head, []byte("GLUL")) {
			return models.FormatGlulx
		}
		if bytes.Contains(head, []byte("ZCOD")) {
			return models.FormatZcode
		}
		return models.FormatUnknown
	}

	// 裸Z-machine镜像：首字节是版本号1-8
	if data[0] >= 1 && data[0] <= 8 {
		return models.FormatZcode
	}

	if bytes.Contains(data[:min(len(data), 256)], []byte(`"inkVersion"`)) {
		return models.FormatInk
	}

	return models.FormatUnknown
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
