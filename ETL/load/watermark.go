package load

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"strconv"

	"github.com/liam29102003/Sales-Data-Datawarehouse/ETL/utils"
)

// Watermarks отображение таблица -> граница последней загрузки (YYYY-MM-DD)
type Watermarks map[string]string

// Clone возвращает независимую копию
func (w Watermarks) Clone() Watermarks {
	if w == nil {
		return Watermarks{}
	}
	return maps.Clone(w)
}

// WatermarkStore хранилище водяных знаков
type WatermarkStore interface {
	// Load никогда не завершается ошибкой: отсутствующий или поврежденный файл дает пустое отображение
	Load() Watermarks
	Save(marks Watermarks) error
}

// FileWatermarkStore хранит водяные знаки в JSON-файле
type FileWatermarkStore struct {
	path   string
	logger *utils.ETLLogger
}

// NewFileWatermarkStore создает новый экземпляр FileWatermarkStore
func NewFileWatermarkStore(path string, logger *utils.ETLLogger) *FileWatermarkStore {
	return &FileWatermarkStore{
		path:   path,
		logger: logger,
	}
}

// Path возвращает путь к файлу
func (s *FileWatermarkStore) Path() string {
	return s.path
}

// Load читает водяные знаки из файла
func (s *FileWatermarkStore) Load() Watermarks {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("Файл водяных знаков %s не найден, начинаем с пустого набора", s.path)
		return Watermarks{}
	}
	if err != nil {
		s.logger.Warn("Не удалось прочитать файл водяных знаков %s: %v", s.path, err)
		return Watermarks{}
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("Файл водяных знаков %s поврежден, начинаем с пустого набора: %v", s.path, err)
		return Watermarks{}
	}

	marks := make(Watermarks, len(raw))
	for table, value := range raw {
		switch v := value.(type) {
		case string:
			marks[table] = v
		case float64:
			marks[table] = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			marks[table] = strconv.FormatBool(v)
		default:
			s.logger.With("table", table).Warn("Пропущен водяной знак нескалярного типа %T", value)
		}
	}
	return marks
}

// Save атомарно записывает водяные знаки: временный файл в том же каталоге и переименование
func (s *FileWatermarkStore) Save(marks Watermarks) error {
	data, err := json.MarshalIndent(marks, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка при сериализации водяных знаков: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("не удалось создать каталог %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".watermarks-*.tmp")
	if err != nil {
		return fmt.Errorf("не удалось создать временный файл: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка при записи водяных знаков: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("ошибка при записи водяных знаков: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("ошибка при закрытии временного файла: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("ошибка при замене файла водяных знаков: %w", err)
	}
	return nil
}
