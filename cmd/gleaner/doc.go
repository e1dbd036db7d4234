// Command gleaner is the CLI for the content pipeline: it runs pipeline
// passes, manages feed subscriptions, processes captured clips, and reports
// run status from the state database.
package main
