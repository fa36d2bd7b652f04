// Package domain declares the record types of the metadata store which
// recmeta reads: Executions, Artifacts, Events and Contexts.
//
// recmeta does not own these records. They are written by the pipeline
// orchestrator, and recmeta only queries them to find out which files a
// past pipeline run has produced.
package domain
