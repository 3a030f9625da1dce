package orders

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	supporterr "supportbot/pkg/errors"
)

const idColumn = "order_id"

var bucketOrders = []byte("orders")

// Field is one named column of an order record.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Order is a structured order record. Fields keep the column order of the
// imported CSV and omit empty cells.
type Order struct {
	ID     string
	Fields []Field
}

// Get returns the value of the named field.
func (o Order) Get(name string) (string, bool) {
	for _, f := range o.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Text renders the order as "name: value" lines.
func (o Order) Text() string {
	lines := make([]string, 0, len(o.Fields))
	for _, f := range o.Fields {
		lines = append(lines, f.Name+": "+f.Value)
	}
	return strings.Join(lines, "\n")
}

// Store is a bbolt-backed order lookup keyed by order id.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the order database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, supporterr.Wrap(err, supporterr.CodeOrdersStoreFailure, "opening order store", supporterr.FieldPath(path))
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketOrders)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, supporterr.Wrap(err, supporterr.CodeOrdersStoreFailure, "creating orders bucket", supporterr.FieldPath(path))
	}
	return &Store{db: db}, nil
}

// Import replaces the stored orders with the rows of a CSV document whose
// header contains an order_id column. It returns the number of orders
// stored. Rows with an empty id are skipped; a later duplicate id wins.
func (s *Store) Import(ctx context.Context, r io.Reader) (int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return 0, supporterr.New(supporterr.CodeOrdersImportInvalid, "orders csv is empty")
		}
		return 0, supporterr.Wrap(err, supporterr.CodeOrdersImportInvalid, "reading orders csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	idCol := -1
	for i, name := range header {
		if name == idColumn {
			idCol = i
			break
		}
	}
	if idCol < 0 {
		return 0, supporterr.New(supporterr.CodeOrdersImportInvalid, "orders csv has no order_id column",
			supporterr.Field("columns", header))
	}

	records := make(map[string][]Field)
	var order []string
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return 0, supporterr.Wrap(err, supporterr.CodeOrdersImportInvalid, "reading orders csv", supporterr.Field("line", line))
		}
		if idCol >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		if id == "" {
			continue
		}
		fields := make([]Field, 0, len(header))
		for i, name := range header {
			if i >= len(row) {
				break
			}
			v := strings.TrimSpace(row[i])
			if v == "" {
				continue
			}
			fields = append(fields, Field{Name: name, Value: v})
		}
		if _, seen := records[id]; !seen {
			order = append(order, id)
		}
		records[id] = fields
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketOrders); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		b, err := tx.CreateBucket(bucketOrders)
		if err != nil {
			return err
		}
		for _, id := range order {
			data, err := json.Marshal(records[id])
			if err != nil {
				return err
			}
			if err := b.Put([]byte(id), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, supporterr.Wrap(err, supporterr.CodeOrdersStoreFailure, "writing orders")
	}
	return len(order), nil
}

// Lookup finds an order by exact id. The boolean reports whether it exists.
func (s *Store) Lookup(id string) (Order, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Order{}, false, nil
	}
	var fields []Field
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketOrders).Get([]byte(id))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &fields)
	})
	if err != nil {
		return Order{}, false, supporterr.Wrap(err, supporterr.CodeOrdersStoreFailure, "reading order", supporterr.Field("order_id", id))
	}
	if !found {
		return Order{}, false, nil
	}
	return Order{ID: id, Fields: fields}, true, nil
}

// Count returns the number of stored orders.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketOrders).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, supporterr.Wrap(err, supporterr.CodeOrdersStoreFailure, "counting orders")
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
