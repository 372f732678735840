package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/lingowing/lingowing/models"
)

var (
	preferencesBucket = []byte("preferences")
	exercisesBucket   = []byte("exercises")
	attemptsBucket    = []byte("attempts")
	cookiesBucket     = []byte("cookies")
)

const (
	// PrefAutopilot 自动答题开关
	PrefAutopilot = "autopilot_enabled"
	// PrefPronunciation 发音练习开关
	PrefPronunciation = "pronunciation_enabled"

	latestExerciseKey = "latest"

	// DefaultMaxAttempts 作答记录保留条数，超出后删除最旧的记录
	DefaultMaxAttempts = 1000
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("not found")

type BoltDB struct {
	db          *bolt.DB
	maxAttempts int
}

func NewBoltDB(dbPath string) (*BoltDB, error) {
	dir := filepath.Dir(dbPath)

	db, err := bolt.Open(dbPath, 0o600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w (directory: %s)", dbPath, err, dir)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{preferencesBucket, exercisesBucket, attemptsBucket, cookiesBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltDB{db: db, maxAttempts: DefaultMaxAttempts}, nil
}

func (b *BoltDB) Close() error {
	return b.db.Close()
}

// SetPreference 保存开关
func (b *BoltDB) SetPreference(key string, enabled bool) error {
	pref := &models.Preference{Key: key, Enabled: enabled, UpdatedAt: time.Now()}
	return b.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(pref)
		if err != nil {
			return err
		}
		return tx.Bucket(preferencesBucket).Put([]byte(key), data)
	})
}

// GetPreference 读取开关，未保存过时返回 ErrNotFound
func (b *BoltDB) GetPreference(key string) (*models.Preference, error) {
	var pref models.Preference
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(preferencesBucket).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &pref)
	})
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// Enabled 读取开关，未保存过时为 false
func (b *BoltDB) Enabled(key string) (bool, error) {
	pref, err := b.GetPreference(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return pref.Enabled, nil
}

// SaveExercise 保存最近一次拦截到的练习数据，整体覆盖
func (b *BoltDB) SaveExercise(set *models.ExerciseSet) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		data, err := set.ToJSON()
		if err != nil {
			return err
		}
		return tx.Bucket(exercisesBucket).Put([]byte(latestExerciseKey), data)
	})
}

// LatestExercise 读取最近的练习数据，没有时返回 ErrNotFound
func (b *BoltDB) LatestExercise() (*models.ExerciseSet, error) {
	var set models.ExerciseSet
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(exercisesBucket).Get([]byte(latestExerciseKey))
		if data == nil {
			return ErrNotFound
		}
		return set.FromJSON(data)
	})
	if err != nil {
		return nil, err
	}
	return &set, nil
}

// attemptKey 按开始时间排序的键
func attemptKey(a *models.Attempt) []byte {
	return []byte(a.StartedAt.UTC().Format("20060102T150405.000000000") + "_" + a.ID)
}

// SaveAttempt 追加作答记录，总数超过 maxAttempts 时删除最旧的记录
func (b *BoltDB) SaveAttempt(attempt *models.Attempt) error {
	if attempt.StartedAt.IsZero() {
		attempt.StartedAt = time.Now()
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(attempt)
		if err != nil {
			return err
		}
		bucket := tx.Bucket(attemptsBucket)
		if err := bucket.Put(attemptKey(attempt), data); err != nil {
			return err
		}
		return trimOldest(bucket, b.maxAttempts)
	})
}

// trimOldest 保留 bucket 中最新的 keep 条记录，keep <= 0 时不限制
func trimOldest(bucket *bolt.Bucket, keep int) error {
	if keep <= 0 {
		return nil
	}
	var keys [][]byte
	c := bucket.Cursor()
	n := 0
	for k, _ := c.Last(); k != nil; k, _ = c.Prev() {
		n++
		if n > keep {
			keys = append(keys, append([]byte(nil), k...))
		}
	}
	for _, k := range keys {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// ListAttempts 按时间倒序列出作答记录，limit <= 0 表示全部
func (b *BoltDB) ListAttempts(limit int) ([]*models.Attempt, error) {
	attempts := []*models.Attempt{}
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(attemptsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var a models.Attempt
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			attempts = append(attempts, &a)
			if limit > 0 && len(attempts) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attempts, nil
}

// ClearAttempts 清空作答记录
func (b *BoltDB) ClearAttempts() error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(attemptsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(attemptsBucket)
		return err
	})
}

// SaveCookies 保存Cookie
func (b *BoltDB) SaveCookies(cookieStore *models.CookieStore) error {
	cookieStore.UpdatedAt = time.Now()
	if cookieStore.CreatedAt.IsZero() {
		cookieStore.CreatedAt = time.Now()
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		data, err := cookieStore.ToJSON()
		if err != nil {
			return err
		}
		return tx.Bucket(cookiesBucket).Put([]byte(cookieStore.ID), data)
	})
}

// GetCookies 获取Cookie
func (b *BoltDB) GetCookies(id string) (*models.CookieStore, error) {
	var cookieStore models.CookieStore
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(cookiesBucket).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		return cookieStore.FromJSON(data)
	})
	if err != nil {
		return nil, err
	}
	return &cookieStore, nil
}
