package reward

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	_ "github.com/mattn/go-sqlite3"

	fls "github.com/decenomy/FLS"
)

// dbOpenAttempts/dbOpenWaitingTime bound the retry loop that opens
// rewards.db: the host wallet occasionally restarts with the old
// process still shutting down and holding the file briefly.
const dbOpenAttempts = 4
const dbOpenWaitingTime = 100 * time.Millisecond

// Store is the sqlite-backed persistence layer for the dynamic reward
// table, grounded on CRewards::Init/Shutdown: a single table keyed by
// epoch height, opened once, with prepared insert/delete statements
// held for the life of the process.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt
	delete *sql.Stmt
}

// OpenStore opens (creating if necessary) the rewards database at
// <dataDir>/chainstate/rewards.db. If reindex is true the existing
// file is deleted first so the table is rebuilt from scratch.
func OpenStore(dataDir string, reindex bool) (*Store, error) {
	dir := filepath.Join(dataDir, "chainstate")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fls.NewError(fls.ErrFatal, "creating chainstate directory", err)
	}

	path := filepath.Join(dir, "rewards.db")
	if reindex {
		if _, err := os.Stat(path); err == nil {
			if err := os.Remove(path); err != nil {
				return nil, fls.NewError(fls.ErrFatal, "deleting existing rewards.db for reindex", err)
			}
		}
	}

	var db *sql.DB
	var err error
	for attempt := 1; attempt <= dbOpenAttempts; attempt++ {
		db, err = sql.Open("sqlite3", path)
		if err == nil {
			err = db.Ping()
		}
		if err == nil {
			break
		}
		if attempt < dbOpenAttempts {
			time.Sleep(dbOpenWaitingTime)
			continue
		}
		return nil, fls.NewError(fls.ErrFatal, "opening rewards.db after retries", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS rewards (height INTEGER PRIMARY KEY, amount INTEGER)`); err != nil {
		db.Close()
		return nil, fls.NewError(fls.ErrFatal, "creating rewards table", err)
	}

	insert, err := db.Prepare(`INSERT OR REPLACE INTO rewards (height, amount) VALUES (?, ?)`)
	if err != nil {
		db.Close()
		return nil, fls.NewError(fls.ErrFatal, "preparing insert statement", err)
	}

	del, err := db.Prepare(`DELETE FROM rewards WHERE height = ?`)
	if err != nil {
		insert.Close()
		db.Close()
		return nil, fls.NewError(fls.ErrFatal, "preparing delete statement", err)
	}

	return &Store{db: db, insert: insert, delete: del}, nil
}

// LoadAll reads every row of the rewards table into a fresh map.
func (s *Store) LoadAll() (map[int32]btcutil.Amount, error) {
	rows, err := s.db.Query(`SELECT height, amount FROM rewards`)
	if err != nil {
		return nil, fls.NewError(fls.ErrFatal, "selecting rewards table", err)
	}
	defer rows.Close()

	out := make(map[int32]btcutil.Amount)
	for rows.Next() {
		var height int32
		var amount int64
		if err := rows.Scan(&height, &amount); err != nil {
			return nil, fls.NewError(fls.ErrFatal, "scanning rewards row", err)
		}
		out[height] = btcutil.Amount(amount)
	}
	return out, rows.Err()
}

// Put upserts the adjusted subsidy for an epoch height.
func (s *Store) Put(height int32, amount btcutil.Amount) error {
	_, err := s.insert.Exec(height, int64(amount))
	if err != nil {
		return fls.NewError(fls.ErrTransient, "writing reward entry", err)
	}
	return nil
}

// Delete removes the entry for an epoch height, undoing Put.
func (s *Store) Delete(height int32) error {
	_, err := s.delete.Exec(height)
	if err != nil {
		return fls.NewError(fls.ErrTransient, "deleting reward entry", err)
	}
	return nil
}

// Close finalizes the prepared statements and closes the database
// connection. It is safe to call more than once.
func (s *Store) Close() error {
	if s.insert != nil {
		s.insert.Close()
		s.insert = nil
	}
	if s.delete != nil {
		s.delete.Close()
		s.delete = nil
	}
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}
