package pkg

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/arangodb/go-driver"
	"github.com/arangodb/go-driver/http"
)

// arangoDatabase is the subset of driver.Database used for loading.
type arangoDatabase interface {
	Collection(ctx context.Context, name string) (driver.Collection, error)
	BeginTransaction(ctx context.Context, cols driver.TransactionCollections, opts *driver.BeginTransactionOptions) (driver.TransactionID, error)
	CommitTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.CommitTransactionOptions) error
	AbortTransaction(ctx context.Context, tid driver.TransactionID, opts *driver.AbortTransactionOptions) error
}

// ArangoDB treats the target table as a document collection. The HTTP driver
// holds no socket of its own, so Close only guards against reuse.
type ArangoDB struct {
	db     arangoDatabase
	closed bool
}

func ConnectToArango(
	ctx context.Context,
	endpoint,
	username,
	password,
	arangoCertificate,
	database string,
) (*ArangoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	connConfig := http.ConnectionConfig{
		Endpoints: []string{endpoint},
	}
	if arangoCertificate != "" {
		caCertificate, err := base64.StdEncoding.DecodeString(arangoCertificate)
		if err != nil {
			return nil, fmt.Errorf("failed decoding CA certificate: %w", err)
		}
		certpool := x509.NewCertPool()
		if success := certpool.AppendCertsFromPEM(caCertificate); !success {
			return nil, errors.New("invalid CA certificate")
		}
		connConfig.TLSConfig = &tls.Config{RootCAs: certpool}
	}

	conn, err := http.NewConnection(connConfig)
	if err != nil {
		return nil, fmt.Errorf("failed creating HTTP connection: %w", err)
	}

	c, err := driver.NewClient(driver.ClientConfig{
		Connection:     conn,
		Authentication: driver.BasicAuthentication(username, password),
	})
	if err != nil {
		return nil, fmt.Errorf("failed creating driver connection: %w", err)
	}

	db, err := c.Database(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("failed getting database %q: %w", database, err)
	}

	return &ArangoDB{db: db}, nil
}

// Begin starts a stream transaction with the collection of the first insert
// in its write set, so the collection is resolved lazily.
func (graph *ArangoDB) Begin(ctx context.Context) (Tx, error) {
	if graph.closed {
		return nil, errors.New("arangodb connection is closed")
	}
	return &arangoTx{db: graph.db}, nil
}

func (graph *ArangoDB) Close(context.Context) error {
	if graph.closed {
		return errors.New("arangodb connection already closed")
	}
	graph.closed = true
	return nil
}

type arangoTx struct {
	db         arangoDatabase
	collection driver.Collection
	name       string
	tid        driver.TransactionID
}

func (t *arangoTx) start(ctx context.Context, name string) error {
	col, err := t.db.Collection(ctx, name)
	if err != nil {
		return fmt.Errorf("failed getting %q collection: %w", name, err)
	}
	tid, err := t.db.BeginTransaction(ctx, driver.TransactionCollections{Write: []string{name}}, nil)
	if err != nil {
		return fmt.Errorf("failed beginning stream transaction: %w", err)
	}
	t.collection, t.name, t.tid = col, name, tid
	return nil
}

func (t *arangoTx) Insert(ctx context.Context, table string, columns []string, values []interface{}) error {
	if t.tid == "" {
		if err := t.start(ctx, table); err != nil {
			return err
		}
	} else if table != t.name {
		return fmt.Errorf("transaction is bound to collection %q, not %q", t.name, table)
	}
	if len(columns) != len(values) {
		return fmt.Errorf("got %d values for %d columns", len(values), len(columns))
	}

	doc := make(map[string]interface{}, len(columns)+1)
	for i, column := range columns {
		if date, ok := values[i].(time.Time); ok {
			doc[column] = date.Format(DateLayout)
			continue
		}
		doc[column] = values[i]
	}
	doc["collection"] = table

	_, err := t.collection.CreateDocument(driver.WithTransactionID(ctx, t.tid), doc)
	return err
}

func (t *arangoTx) Commit(ctx context.Context) error {
	if t.tid == "" {
		return nil
	}
	return t.db.CommitTransaction(ctx, t.tid, nil)
}

func (t *arangoTx) Rollback(ctx context.Context) error {
	if t.tid == "" {
		return nil
	}
	return t.db.AbortTransaction(ctx, t.tid, nil)
}
