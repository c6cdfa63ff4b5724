/*
Package session serializes work on a single contact.

Two inbound messages from the same phone number must not both read the saved
flow position, run a node and write the next position concurrently, or one of
the writes is lost. Manager provides a per-key mutex inside one process and,
optionally, a distributed lock shared by all replicas.
*/
package session
