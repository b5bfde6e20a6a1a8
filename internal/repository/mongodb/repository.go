package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mvbarros/estoque/internal/domain/models"
)

// Repository defines the interface for the reconciliation report archive.
type Repository interface {
	SaveReconciliationReport(ctx context.Context, report models.ReconciliationReport) error
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: "reconciliation_reports",
	}, nil
}

// SaveReconciliationReport archives one repair-pass report.
func (r *MongoDBRepository) SaveReconciliationReport(ctx context.Context, report models.ReconciliationReport) error {
	collection := r.client.Database(r.dbName).Collection(r.collName)
	_, err := collection.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert reconciliation report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
