//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"
)

const (
	neo4jContainer = "knowledge-engine-neo4j"
	neo4jImage     = "neo4j:5"
)

// Neo4jUp starts a local Neo4j container for development. The password comes
// from .secrets/neo4j-password, falling back to "knowledge".
func Neo4jUp() error {
	password := "knowledge"
	if data, err := os.ReadFile(".secrets/neo4j-password"); err == nil && len(data) > 0 {
		password = string(data)
	}

	cmd := exec.Command("docker", "run", "-d",
		"--name", neo4jContainer,
		"-p", "7687:7687",
		"-p", "7474:7474",
		"-e", "NEO4J_AUTH=neo4j/"+password,
		"-v", "knowledge-engine-neo4j-data:/data",
		neo4jImage)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("starting neo4j container: %w", err)
	}
	fmt.Println("Neo4j listening on bolt://localhost:7687")
	return nil
}

// Neo4jDown stops and removes the development Neo4j container. Data persists
// in the named volume.
func Neo4jDown() error {
	cmd := exec.Command("docker", "rm", "-f", neo4jContainer)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("removing neo4j container: %w", err)
	}
	return nil
}
