// Package workbook stores every movement log as an .xlsx file, compatible
// with the estratto conto files kept by hand before the ledger existed.
//
// Layout under the root directory:
//
//	estratto_conto_admin.xlsx            shared admin pool
//	personal/estratto_conto_<handle>.xlsx one file per owner
//	admins.xlsx                          dynamic admins in grant order
//
// Each write goes to a temporary file that is renamed over the target, so a
// crash never leaves a truncated workbook behind.
package workbook

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"totalx/internal/core"
	"totalx/internal/storage"
)

const (
	sheetName      = "Movimenti"
	adminSheetName = "Admin"
	filePrefix     = "estratto_conto_"
	fileExt        = ".xlsx"
	adminFile      = filePrefix + "admin" + fileExt
	adminsFile     = "admins.xlsx"
	personalDir    = "personal"
)

var (
	movementHeader = []any{"user", "movimento", "data"}
	adminHeader    = []any{"admin", "granted_by", "data"}
)

type Store struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

var _ storage.Repository = (*Store)(nil)

// New returns a store rooted at dir, creating it if needed.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, personalDir), 0755); err != nil {
		return nil, fmt.Errorf("create workbook directory: %w", err)
	}
	return &Store{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) Close() error { return nil }

// Path returns the workbook file backing key.
func (s *Store) Path(key core.StoreKey) string {
	if key.IsAdmin() {
		return filepath.Join(s.dir, adminFile)
	}
	return filepath.Join(s.dir, personalDir, filePrefix+url.PathEscape(key.Owner().Handle())+fileExt)
}

func (s *Store) fileLock(path string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[path]
	if !ok {
		l = &sync.Mutex{}
		s.locks[path] = l
	}
	return l
}

func (s *Store) Append(_ context.Context, key core.StoreKey, m core.Movement) (core.Movement, error) {
	if err := m.Validate(); err != nil {
		return core.Movement{}, err
	}
	path := s.Path(key)
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()

	rows, err := readRows(path)
	if err != nil {
		return core.Movement{}, err
	}
	m.ID = int64(len(rows) + 1)
	m.Timestamp = m.Timestamp.UTC().Truncate(time.Second)
	rows = append(rows, encodeMovement(m))

	if err := writeRows(path, sheetName, movementHeader, rows); err != nil {
		return core.Movement{}, err
	}
	return m, nil
}

func (s *Store) ReadAll(_ context.Context, key core.StoreKey) ([]core.Movement, error) {
	path := s.Path(key)
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()

	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	movements := make([]core.Movement, 0, len(rows))
	for i, row := range rows {
		m, err := decodeMovement(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", filepath.Base(path), i+2, err)
		}
		m.ID = int64(i + 1)
		movements = append(movements, m)
	}
	return movements, nil
}

func (s *Store) UndoLast(_ context.Context, key core.StoreKey) (core.Movement, bool, error) {
	path := s.Path(key)
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()

	rows, err := readRows(path)
	if err != nil {
		return core.Movement{}, false, err
	}
	if len(rows) == 0 {
		return core.Movement{}, false, nil
	}
	last, err := decodeMovement(rows[len(rows)-1])
	if err != nil {
		return core.Movement{}, false, fmt.Errorf("%s last row: %w", filepath.Base(path), err)
	}
	last.ID = int64(len(rows))

	if err := writeRows(path, sheetName, movementHeader, rows[:len(rows)-1]); err != nil {
		return core.Movement{}, false, err
	}
	return last, true, nil
}

// Reset recreates the workbook with only its header row.
func (s *Store) Reset(_ context.Context, key core.StoreKey) error {
	path := s.Path(key)
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()
	return writeRows(path, sheetName, movementHeader, nil)
}

func (s *Store) Keys(ctx context.Context) ([]core.StoreKey, error) {
	var keys []core.StoreKey

	if n, err := s.countRows(s.Path(core.AdminKey())); err != nil {
		return nil, err
	} else if n > 0 {
		keys = append(keys, core.AdminKey())
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, personalDir, filePrefix+"*"+fileExt))
	if err != nil {
		return nil, fmt.Errorf("list workbooks: %w", err)
	}
	sort.Strings(matches)
	for _, path := range matches {
		name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), filePrefix), fileExt)
		handle, err := url.PathUnescape(name)
		if err != nil {
			slog.WarnContext(ctx, "Skipping workbook with unparsable name", "path", path, "error", err)
			continue
		}
		owner, err := core.ParseIdentity(handle)
		if err != nil {
			slog.WarnContext(ctx, "Skipping workbook with invalid owner", "path", path, "error", err)
			continue
		}
		n, err := s.countRows(path)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			keys = append(keys, core.PersonalKey(owner))
		}
	}
	return keys, nil
}

func (s *Store) countRows(path string) (int, error) {
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()
	rows, err := readRows(path)
	return len(rows), err
}

func (s *Store) ListAdmins(_ context.Context) ([]core.Identity, error) {
	path := filepath.Join(s.dir, adminsFile)
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()

	rows, err := readRows(path)
	if err != nil {
		return nil, err
	}
	admins := make([]core.Identity, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		id, err := core.ParseIdentity(row[0])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", adminsFile, err)
		}
		admins = append(admins, id)
	}
	return admins, nil
}

func (s *Store) AddAdmin(_ context.Context, id, grantedBy core.Identity) error {
	path := filepath.Join(s.dir, adminsFile)
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()

	rows, err := readRows(path)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if len(row) > 0 && row[0] == id.String() {
			return nil
		}
	}
	rows = append(rows, []string{id.String(), grantedBy.String(), time.Now().UTC().Format(core.TimestampLayout)})
	return writeRows(path, adminSheetName, adminHeader, rows)
}

func (s *Store) RemoveAdmin(_ context.Context, id core.Identity) error {
	path := filepath.Join(s.dir, adminsFile)
	l := s.fileLock(path)
	l.Lock()
	defer l.Unlock()

	rows, err := readRows(path)
	if err != nil {
		return err
	}
	kept := rows[:0]
	for _, row := range rows {
		if len(row) > 0 && row[0] == id.String() {
			continue
		}
		kept = append(kept, row)
	}
	return writeRows(path, adminSheetName, adminHeader, kept)
}

// readRows returns the data rows of the first sheet, header excluded.
// A missing file reads as an empty log.
func readRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	all, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read workbook %s: %w", filepath.Base(path), err)
	}
	if len(all) <= 1 {
		return nil, nil
	}
	rows := make([][]string, 0, len(all)-1)
	for _, row := range all[1:] {
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func writeRows(path, sheet string, header []any, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if sheet == sheetName && len(row) > 1 {
			// movimento is numeric so the sheet can sum it
			if amount, err := core.ParseAmount(row[1]); err == nil {
				values[1] = amount.Float64()
			}
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	tmp := path + ".tmp"
	if err := f.SaveAs(tmp); err != nil {
		return fmt.Errorf("save workbook %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace workbook %s: %w", filepath.Base(path), err)
	}
	return nil
}

func encodeMovement(m core.Movement) []string {
	return []string{m.Principal.String(), m.Amount.String(), m.Timestamp.UTC().Format(core.TimestampLayout)}
}

func decodeMovement(row []string) (core.Movement, error) {
	if len(row) < 3 {
		return core.Movement{}, fmt.Errorf("expected 3 columns, got %d", len(row))
	}
	principal, err := core.ParseIdentity(row[0])
	if err != nil {
		return core.Movement{}, err
	}
	amount, err := core.ParseAmount(row[1])
	if err != nil {
		return core.Movement{}, err
	}
	ts, err := time.ParseInLocation(core.TimestampLayout, strings.TrimSpace(row[2]), time.UTC)
	if err != nil {
		return core.Movement{}, fmt.Errorf("parse timestamp %q: %w", row[2], err)
	}
	return core.Movement{Principal: principal, Amount: amount, Timestamp: ts}, nil
}
