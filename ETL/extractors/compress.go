package extractors

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/snappy"
)

// snappyStreamIdentifier первый блок файла в потоковом формате snappy
var snappyStreamIdentifier = []byte("\xff\x06\x00\x00sNaPpY")

// CompressedExt расширение выгрузок, сжатых snappy
const CompressedExt = ".sz"

type sourceFile struct {
	io.Reader
	file *os.File
}

func (s *sourceFile) Close() error {
	return s.file.Close()
}

// openSource открывает выгрузку. Файлы *.sz распаковываются: потоковый формат
// читается через snappy.Reader, блочный формат распаковывается целиком.
func openSource(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(strings.ToLower(path), CompressedExt) {
		return file, nil
	}

	br := bufio.NewReader(file)
	if magic, err := br.Peek(len(snappyStreamIdentifier)); err == nil && bytes.Equal(magic, snappyStreamIdentifier) {
		return &sourceFile{Reader: snappy.NewReader(br), file: file}, nil
	}

	defer file.Close()
	compressed, err := io.ReadAll(br)
	if err != nil {
		return nil, err
	}
	data, err := DecompressBlock(compressed)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки %s: %w", path, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// CompressBlock сжимает данные в блочном формате snappy
func CompressBlock(data []byte) []byte {
	return snappy.Encode(nil, data)
}

// DecompressBlock распаковывает данные блочного формата snappy
func DecompressBlock(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	return decompressed, nil
}
