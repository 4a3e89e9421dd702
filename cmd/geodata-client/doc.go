// Command geodata-client drives a geodata server from the command line.
//
//	geodata-client --caller 0xC0... upload points.csv
//	geodata-client encrypt points.json
//	geodata-client --caller 0xC0... store --encrypted-file points.json.enc --metadata-file points.json.enc.meta
//	geodata-client --caller 0xC0... grant --data-id <id> --address 0xD0...
package main
