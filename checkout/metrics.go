package checkout

import "expvar"

var (
	salesCommitted = expvar.NewInt("pos_sales_committed")
	salesRejected  = expvar.NewInt("pos_sales_rejected")
	printFailures  = expvar.NewInt("pos_receipt_print_failures")
	commitWarnings = expvar.NewInt("pos_commit_warnings")
)
