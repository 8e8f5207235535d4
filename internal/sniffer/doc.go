// Package sniffer defines the core types and interfaces shared by the font
// search subsystems: requests, page tasks, results, stats, and the session
// lifecycle.
package sniffer
