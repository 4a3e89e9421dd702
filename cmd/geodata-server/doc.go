/*
Command geodata-server serves the record store and the dataset endpoints.

The record store backend is chosen with --store-backend:

  - memory: process-local, for development
  - badger: durable, stored under --badger-path
  - onchain: the GeoDataStorage contract at --contract-address, one
    --signer-key per caller identity that may submit transactions

Encrypted artifacts are kept in --workspace and, when --storage-uri is given,
replicated to those backends.
*/
package main
