//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const mailerBinary = "bin/mailer"

// Default target - build the mailer binary
var Default = Build

// Build はサンプルアプリケーション mailer をビルドします。
func Build() error {
	mg.Deps(Vet)
	fmt.Println("Building", mailerBinary)
	return sh.RunV("go", "build", "-o", mailerBinary, "./example/mailer")
}

// Vet は go vet を実行します。
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Test は全パッケージのテストを race detector 付きで実行します。
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Run は mailer をビルドして起動します。
func Run() error {
	mg.Deps(Build)
	return sh.RunV(mailerBinary)
}

// Clean はビルド成果物を削除します。
func Clean() error {
	return sh.Rm("bin")
}
