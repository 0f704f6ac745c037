// Package storage はジョブが扱う一時ファイルのローカル管理を提供します。
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Local はローカルファイルシステム上の作業ディレクトリを表します。
// 保存先: <root>/audio_<uuid>.<ext>, <root>/audio_<uuid>_chunk_000.mp3 ...
type Local struct {
	root string
}

// NewLocal は作業ディレクトリを作成して Local を返します。
func NewLocal(root string) (*Local, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "quam")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	return &Local{root: root}, nil
}

// Root は作業ディレクトリのパスを返します。
func (l *Local) Root() string {
	return l.root
}

// NewAudioBase は拡張子なしの一意な音声ファイルパスを返します。
// 拡張子はダウンロード時に決まるため呼び出し側で付与します。
func (l *Local) NewAudioBase() string {
	return filepath.Join(l.root, "audio_"+uuid.NewString())
}

// Remove はファイルを削除します。存在しない場合は成功扱いです。
func Remove(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll は複数ファイルを削除し、失敗したものをまとめて返します。
func RemoveAll(paths []string) error {
	var errs []error
	for _, p := range paths {
		if err := Remove(p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveMatching は base から始まるファイル（yt-dlp の .part など）を削除します。
func RemoveMatching(base string) error {
	if base == "" {
		return nil
	}
	matches, err := filepath.Glob(base + "*")
	if err != nil {
		return err
	}
	return RemoveAll(matches)
}
