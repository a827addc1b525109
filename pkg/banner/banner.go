// Package banner prints the startup banner for the worker entrypoint:
// listen address, backend, table names, and config provenance, announced
// before the worker starts consuming.
package banner

import "fmt"

const art = `
 ██████╗ ██████╗ ██╗      █████╗ ███████╗
██╔════╝██╔═══██╗██║     ██╔══██╗██╔════╝
██║     ██║   ██║██║     ███████║███████╗
██║     ██║   ██║██║     ██╔══██║╚════██║
╚██████╗╚██████╔╝███████╗██║  ██║███████║
 ╚═════╝ ╚═════╝ ╚══════╝╚═╝  ╚═╝╚══════╝
`

// Print renders the banner for a worker process: admin listen address,
// backend DSN, queue/results table names, and which config layer won.
func Print(admin, dsn, queueName, resultsTable, source, version string) {
	fmt.Print(art)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Admin:    %s\n", admin)
	fmt.Printf("Backend:  %s\n", dsn)
	fmt.Printf("Queue:    %s\n", queueName)
	fmt.Printf("Results:  %s\n", resultsTable)
	fmt.Printf("Version:  %s\n", version)
	fmt.Printf("Config source: %s\n", source)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Printf("GET  http://%s/healthz\n", admin)
	fmt.Printf("GET  http://%s/metrics\n", admin)
}
