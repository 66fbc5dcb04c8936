package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/qs3c/audiosep_server/config"
)

// Object 存储中的一个文件，Name 与 Save 返回的名字一致
type Object struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store 上传文件的存储后端，目录或 OSS 前缀由后端自己处理
type Store interface {
	// Save 写入 name，返回之后用于引用该文件的名字
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]Object, error)
}

// New 根据 upload.storage 选择后端
func New(uploadCfg *config.UploadConfig, ossCfg *config.OSSConfig) (Store, error) {
	switch uploadCfg.Storage {
	case "", "local":
		return NewLocalStore(uploadCfg.Dir)
	case "oss":
		return NewOSSStore(ossCfg, uploadCfg.Dir)
	default:
		return nil, fmt.Errorf("unsupported upload storage: %s", uploadCfg.Storage)
	}
}
