// Package objectstore implements store.ImageStore on S3-compatible object
// storage using the MinIO client.
package objectstore
