// Package datahandler serves dataset upload, encryption and workspace
// listing under /api/data.
package datahandler
