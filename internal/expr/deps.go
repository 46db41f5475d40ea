package expr

// ColumnDeps returns the distinct column names an expression reads, in
// first-appearance order.
func ColumnDeps(e Expr) []string {
	var deps []string
	seen := make(map[string]bool)

	var walk func(Expr)
	walk = func(e Expr) {
		if c, ok := e.(*ColumnExpr); ok {
			if !seen[c.name] {
				seen[c.name] = true
				deps = append(deps, c.name)
			}
			return
		}
		for _, child := range e.Children() {
			walk(child)
		}
	}
	walk(e)
	return deps
}

// HasAgg reports whether the tree contains an aggregation outside of a
// window (window aggregations keep row count and are not group-by
// aggregations).
func HasAgg(e Expr) bool {
	switch ex := e.(type) {
	case *AggExpr:
		return true
	case *WindowExpr:
		return false
	default:
		for _, child := range ex.Children() {
			if HasAgg(child) {
				return true
			}
		}
		return false
	}
}

// Equal reports structural equality of two expression trees. Used by
// common-subexpression elimination.
func Equal(a, b Expr) bool {
	if a.Kind() != b.Kind() {
		return false
	}

	switch ax := a.(type) {
	case *ColumnExpr:
		return ax.name == b.(*ColumnExpr).name
	case *LiteralExpr:
		return ax.value == b.(*LiteralExpr).value
	case *BinaryExpr:
		bx := b.(*BinaryExpr)
		return ax.op == bx.op && Equal(ax.left, bx.left) && Equal(ax.right, bx.right)
	case *UnaryExpr:
		bx := b.(*UnaryExpr)
		return ax.op == bx.op && Equal(ax.operand, bx.operand)
	case *FunctionExpr:
		bx := b.(*FunctionExpr)
		if ax.name != bx.name || len(ax.args) != len(bx.args) {
			return false
		}
		for i := range ax.args {
			if !Equal(ax.args[i], bx.args[i]) {
				return false
			}
		}
		return true
	case *AggExpr:
		bx := b.(*AggExpr)
		return ax.op == bx.op && Equal(ax.operand, bx.operand)
	case *WindowExpr:
		bx := b.(*WindowExpr)
		if !Equal(ax.inner, bx.inner) || len(ax.partitionBy) != len(bx.partitionBy) ||
			len(ax.orderBy) != len(bx.orderBy) {
			return false
		}
		for i := range ax.partitionBy {
			if !Equal(ax.partitionBy[i], bx.partitionBy[i]) {
				return false
			}
		}
		for i := range ax.orderBy {
			if ax.orderBy[i].Descending != bx.orderBy[i].Descending ||
				ax.orderBy[i].NullsFirst != bx.orderBy[i].NullsFirst ||
				!Equal(ax.orderBy[i].Expr, bx.orderBy[i].Expr) {
				return false
			}
		}
		return true
	case *CastExpr:
		bx := b.(*CastExpr)
		return ax.to.ID() == bx.to.ID() && Equal(ax.operand, bx.operand)
	case *AliasExpr:
		bx := b.(*AliasExpr)
		return ax.name == bx.name && Equal(ax.operand, bx.operand)
	case *SortByExpr:
		bx := b.(*SortByExpr)
		if !Equal(ax.operand, bx.operand) || len(ax.keys) != len(bx.keys) {
			return false
		}
		for i := range ax.keys {
			if ax.keys[i].Descending != bx.keys[i].Descending ||
				ax.keys[i].NullsFirst != bx.keys[i].NullsFirst ||
				!Equal(ax.keys[i].Expr, bx.keys[i].Expr) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Rewrite applies fn bottom-up over the tree, rebuilding nodes whose
// children changed. fn receives each (already rewritten) node and
// returns its replacement.
func Rewrite(e Expr, fn func(Expr) Expr) Expr {
	switch ex := e.(type) {
	case *ColumnExpr, *LiteralExpr:
		return fn(e)
	case *BinaryExpr:
		left := Rewrite(ex.left, fn)
		right := Rewrite(ex.right, fn)
		if left != ex.left || right != ex.right {
			return fn(NewBinary(left, ex.op, right))
		}
		return fn(e)
	case *UnaryExpr:
		operand := Rewrite(ex.operand, fn)
		if operand != ex.operand {
			return fn(NewUnary(ex.op, operand))
		}
		return fn(e)
	case *FunctionExpr:
		args := make([]Expr, len(ex.args))
		changed := false
		for i, a := range ex.args {
			args[i] = Rewrite(a, fn)
			changed = changed || args[i] != a
		}
		if changed {
			return fn(NewFunction(ex.name, args...))
		}
		return fn(e)
	case *AggExpr:
		operand := Rewrite(ex.operand, fn)
		if operand != ex.operand {
			return fn(NewAgg(ex.op, operand))
		}
		return fn(e)
	case *WindowExpr:
		inner := Rewrite(ex.inner, fn)
		partitions := make([]Expr, len(ex.partitionBy))
		changed := inner != ex.inner
		for i, p := range ex.partitionBy {
			partitions[i] = Rewrite(p, fn)
			changed = changed || partitions[i] != p
		}
		orderBy := make([]SortField, len(ex.orderBy))
		for i, f := range ex.orderBy {
			orderBy[i] = SortField{Expr: Rewrite(f.Expr, fn), Descending: f.Descending, NullsFirst: f.NullsFirst}
			changed = changed || orderBy[i].Expr != f.Expr
		}
		if changed {
			return fn(NewWindow(inner, partitions, orderBy))
		}
		return fn(e)
	case *CastExpr:
		operand := Rewrite(ex.operand, fn)
		if operand != ex.operand {
			return fn(NewCast(operand, ex.to))
		}
		return fn(e)
	case *AliasExpr:
		operand := Rewrite(ex.operand, fn)
		if operand != ex.operand {
			return fn(NewAlias(operand, ex.name))
		}
		return fn(e)
	case *SortByExpr:
		operand := Rewrite(ex.operand, fn)
		keys := make([]SortField, len(ex.keys))
		changed := operand != ex.operand
		for i, k := range ex.keys {
			keys[i] = SortField{Expr: Rewrite(k.Expr, fn), Descending: k.Descending, NullsFirst: k.NullsFirst}
			changed = changed || keys[i].Expr != k.Expr
		}
		if changed {
			return fn(NewSortBy(operand, keys))
		}
		return fn(e)
	default:
		return fn(e)
	}
}

// SplitConjunction flattens nested AND chains into their conjuncts, in
// left-to-right order. A non-AND expression returns itself.
func SplitConjunction(e Expr) []Expr {
	if b, ok := e.(*BinaryExpr); ok && b.op == OpAnd {
		return append(SplitConjunction(b.left), SplitConjunction(b.right)...)
	}
	return []Expr{e}
}

// Conjoin rebuilds a predicate from conjuncts with left-deep ANDs.
func Conjoin(conjuncts []Expr) Expr {
	if len(conjuncts) == 0 {
		return Lit(true)
	}
	out := conjuncts[0]
	for _, c := range conjuncts[1:] {
		out = NewBinary(out, OpAnd, c)
	}
	return out
}
