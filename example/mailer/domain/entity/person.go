package entity

import "fmt"

// Person はメール送信対象者を表すエンティティです。
type Person struct {
	FirstName string `db:"first_name" json:"firstName"`
	LastName  string `db:"last_name" json:"lastName"`
	Email     string `db:"email" json:"email"`
}

// NewPerson は新しい Person を作成します。
func NewPerson(firstName, lastName, email string) Person {
	return Person{FirstName: firstName, LastName: lastName, Email: email}
}

// String はログ出力用の文字列表現を返します。
func (p Person) String() string {
	return fmt.Sprintf("Person{lastName='%s', firstName='%s', email='%s'}", p.LastName, p.FirstName, p.Email)
}
