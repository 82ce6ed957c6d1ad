// Package intro holds small arithmetic helpers.
package intro

import (
	"math"
	"strconv"
)

// Max returns the larger of a and b. Ties return a.
func Max(a, b int) int {
	if b > a {
		return b
	}
	return a
}

// FizzBuzz returns "FizzBuzz" for multiples of 15, "Fizz" for multiples of 3,
// "Buzz" for multiples of 5, and the decimal form of n otherwise.
func FizzBuzz(n int) string {
	switch {
	case n%15 == 0:
		return "FizzBuzz"
	case n%3 == 0:
		return "Fizz"
	case n%5 == 0:
		return "Buzz"
	}
	return strconv.Itoa(n)
}

// CalculateAverage returns the arithmetic mean, or NaN for an empty slice.
func CalculateAverage(numbers []float64) float64 {
	if len(numbers) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, n := range numbers {
		sum += n
	}
	return sum / float64(len(numbers))
}

// Factorial returns n! and true. For negative n, or when n! does not fit in
// an int (n >= 21 on 64-bit), it returns 0, false.
func Factorial(n int) (int, bool) {
	if n < 0 {
		return 0, false
	}
	result := 1
	for i := 2; i <= n; i++ {
		if result > math.MaxInt/i {
			return 0, false
		}
		result *= i
	}
	return result, true
}
