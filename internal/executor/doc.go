// Package executor provides the command-execution and API-check
// capabilities the discovery pipeline runs on.
//
// Executor runs a shell command against a Target with a timeout. Three
// implementations exist:
//
//   - LocalExecutor runs `sh -c` on this machine.
//   - SSHExecutor runs the command in a new session on a cached
//     golang.org/x/crypto/ssh client, authenticating with the ssh-agent and
//     configured key files and verifying hosts against known_hosts.
//   - Mux picks one of the two from Target.Local.
//
// A command that ran and failed is data (exit code, timeout flag); only a
// failure to reach the target or start the command is returned as an error.
//
// ExecChecker implements Checker by running curl on the node itself, so beacon
// APIs bound to the node's loopback interface can be checked without tunnels.
package executor
