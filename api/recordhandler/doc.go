// Package recordhandler serves the record store under /api/blockchain and
// provides Client, a RecordStore implementation speaking the same endpoints.
package recordhandler
