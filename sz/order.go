package sz

// AxisOrders returns all n! orderings of the axes 0..n-1 in lexicographic order,
// so a given index always selects the same ordering.
func AxisOrders(n int) [][]int {
	seq := make([]int, n)
	for i := range seq {
		seq[i] = i
	}
	var orders [][]int
	for {
		order := make([]int, n)
		copy(order, seq)
		orders = append(orders, order)
		if !nextPermutation(seq) {
			return orders
		}
	}
}

// nextPermutation rearranges seq into its lexicographic successor and returns
// false if seq was already the last ordering.
func nextPermutation(seq []int) bool {
	i := len(seq) - 2
	for i >= 0 && seq[i] >= seq[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(seq) - 1
	for seq[j] <= seq[i] {
		j--
	}
	seq[i], seq[j] = seq[j], seq[i]
	for l, r := i+1, len(seq)-1; l < r; l, r = l+1, r-1 {
		seq[l], seq[r] = seq[r], seq[l]
	}
	return true
}

// Factorial returns n! for small n.
func Factorial(n int) int {
	f := 1
	for i := 2; i <= n; i++ {
		f *= i
	}
	return f
}
