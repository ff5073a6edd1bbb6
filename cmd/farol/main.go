// Command farol runs the news ingestion pipeline.
package main

import "github.com/farolnews/farol-ingest/cmd"

func main() {
	cmd.Execute()
}
