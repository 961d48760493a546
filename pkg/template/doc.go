// Package template renders expressions embedded in script values
//
// A Port renders `{{ expr }}` placeholders found in strings, lists, and
// mappings, evaluates bare condition expressions, and evaluates loop
// sources. Expressions are evaluated by a language Environment; Lua, Ale,
// and JSON path environments are provided and selected through a Registry
package template
